package event

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEvent is returned when an event fails validation
	ErrInvalidEvent = errors.New("invalid event")

	// ErrDuplicateEvent is returned when an event ID already exists in the log
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrNoEvents is returned when an operation requires events and none exist
	ErrNoEvents = errors.New("no events")

	// ErrInvalidSnapshot is returned when a snapshot cannot be restored
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

func errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
