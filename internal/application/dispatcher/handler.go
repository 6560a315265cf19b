package dispatcher

import (
	"context"
	"time"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// Handler reacts to one processed event and reports its own outcome.
// Failures are returned as a failed HandlerResult, not as a panic.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt *event.Event) HandlerResult
}

// HandlerResult is produced once per handler invocation
type HandlerResult struct {
	HandlerName string                 `json:"handler_name"`
	Success     bool                   `json:"success"`
	Error       string                 `json:"error,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// Succeeded builds a successful result
func Succeeded(name string, data map[string]interface{}) HandlerResult {
	return HandlerResult{HandlerName: name, Success: true, Data: data}
}

// Failed builds a failed result carrying the error text
func Failed(name string, err error) HandlerResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return HandlerResult{HandlerName: name, Success: false, Error: msg}
}

// HandlerFunc adapts a plain function to the Handler interface
type HandlerFunc struct {
	name string
	fn   func(ctx context.Context, evt *event.Event) error
}

// NewHandlerFunc wraps fn as a named handler. A nil error is a success.
func NewHandlerFunc(name string, fn func(ctx context.Context, evt *event.Event) error) *HandlerFunc {
	return &HandlerFunc{name: name, fn: fn}
}

// Name returns the handler name
func (h *HandlerFunc) Name() string {
	return h.name
}

// Handle runs the wrapped function
func (h *HandlerFunc) Handle(ctx context.Context, evt *event.Event) HandlerResult {
	if err := h.fn(ctx, evt); err != nil {
		return Failed(h.name, err)
	}
	return Succeeded(h.name, nil)
}

// Mode tells whether a handler blocks the caller or is fanned out
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string     `json:"name"`
	EventType event.Type `json:"event_type"`
	Mode      Mode       `json:"mode"`
}
