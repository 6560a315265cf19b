package workflow

import (
	"time"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

// TransitionResult reports the outcome of ExecuteTransition
type TransitionResult struct {
	AggregateID   int64                    `json:"aggregate_id"`
	PreviousState domainwf.State           `json:"previous_state"`
	NewState      domainwf.State           `json:"new_state"`
	Timestamp     time.Time                `json:"timestamp"`
	Success       bool                     `json:"success"`
	Message       string                   `json:"message"`
	HookResults   []*EventProcessingResult `json:"hook_results,omitempty"`
}

// EventProcessingResult reports the outcome of processing one event.
// Success is false when any handler failed; HandlerResults still holds
// one entry per handler that ran.
type EventProcessingResult struct {
	EventID        string                     `json:"event_id"`
	AggregateID    int64                      `json:"aggregate_id"`
	EventType      event.Type                 `json:"event_type"`
	Stored         bool                       `json:"stored"`
	Success        bool                       `json:"success"`
	Message        string                     `json:"message,omitempty"`
	HandlerResults []dispatcher.HandlerResult `json:"handler_results"`
	Errors         []string                   `json:"errors,omitempty"`
}

// FailedHandlers returns the number of failed handler results
func (r *EventProcessingResult) FailedHandlers() int {
	n := 0
	for _, hr := range r.HandlerResults {
		if !hr.Success {
			n++
		}
	}
	return n
}

// ReplayOutcome is the per-event result of a replay
type ReplayOutcome struct {
	EventID   string     `json:"event_id"`
	EventType event.Type `json:"event_type"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
}

// EventReplayResult reports the outcome of a replay
type EventReplayResult struct {
	AggregateID int64           `json:"aggregate_id"`
	TotalEvents int             `json:"total_events"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Success     bool            `json:"success"`
	Message     string          `json:"message,omitempty"`
	Outcomes    []ReplayOutcome `json:"outcomes"`
}
