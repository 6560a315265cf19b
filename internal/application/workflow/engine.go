package workflow

import (
	"context"
	"time"

	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

// Coordinator orchestrates reception transitions and event processing.
// Every operation reports failures through its result value.
type Coordinator interface {
	// ExecuteTransition validates a move, runs its hooks and records it
	ExecuteTransition(ctx context.Context, req domainwf.TransitionRequest) *TransitionResult

	// ProcessEvent stores a new event and fans it out to its handlers
	ProcessEvent(ctx context.Context, aggregateID int64, eventType event.Type, payload map[string]interface{}, actorID string) *EventProcessingResult

	// ReplayEvents re-dispatches the aggregate's stored events without re-appending them
	ReplayEvents(ctx context.Context, aggregateID int64, from *time.Time) *EventReplayResult

	// ReplayEventsWith replays with explicit options
	ReplayEventsWith(ctx context.Context, aggregateID int64, opts ReplayOptions) *EventReplayResult

	// FilterEvents queries the event log
	FilterEvents(ctx context.Context, criteria event.Criteria) []*event.Event
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
