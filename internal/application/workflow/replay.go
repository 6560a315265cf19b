package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// ReplayOptions controls how stored history is re-driven
type ReplayOptions struct {
	// From limits replay to events at or after this time
	From *time.Time

	// Repersist appends each replayed event as a new event with a fresh ID,
	// correlated to the original. Without it the stored events are only
	// re-dispatched and the log is left untouched.
	Repersist bool
}

// ReplayEvents re-dispatches the aggregate's stored events in stored order
func (c *coordinator) ReplayEvents(ctx context.Context, aggregateID int64, from *time.Time) *EventReplayResult {
	return c.ReplayEventsWith(ctx, aggregateID, ReplayOptions{From: from})
}

// ReplayEventsWith replays the aggregate's history. A failure on one event
// never stops the replay of later ones.
func (c *coordinator) ReplayEventsWith(ctx context.Context, aggregateID int64, opts ReplayOptions) *EventReplayResult {
	result := &EventReplayResult{
		AggregateID: aggregateID,
		Outcomes:    []ReplayOutcome{},
	}

	if aggregateID <= 0 {
		result.Message = fmt.Sprintf("aggregate id must be positive, got %d", aggregateID)
		return result
	}

	events := c.eventLog.GetByAggregate(ctx, aggregateID, opts.From)
	result.TotalEvents = len(events)
	if len(events) == 0 {
		result.Success = true
		result.Message = "no events to replay"
		return result
	}

	c.logger.Info("Replaying events",
		"aggregate_id", aggregateID,
		"event_count", len(events),
		"repersist", opts.Repersist,
	)

	for _, evt := range events {
		var processed *EventProcessingResult
		if opts.Repersist {
			fresh := event.NewEventWithCorrelation(evt.Type, evt.AggregateID, evt.ActorID, evt.Payload, evt.ID)
			processed = c.process(ctx, fresh, true)
		} else {
			processed = c.process(ctx, evt, false)
		}

		outcome := ReplayOutcome{
			EventID:   evt.ID,
			EventType: evt.Type,
			Success:   processed.Success,
		}
		if processed.Success {
			result.Succeeded++
		} else {
			result.Failed++
			outcome.Error = strings.Join(processed.Errors, "; ")
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Success = result.Failed == 0
	result.Message = fmt.Sprintf("replayed %d events, %d failed", result.TotalEvents, result.Failed)

	c.logger.Info("Replay finished",
		"aggregate_id", aggregateID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return result
}
