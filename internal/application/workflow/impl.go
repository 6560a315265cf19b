package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/entity"
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

const tracerName = "github.com/garyjia/reception-workflow/workflow"

const internalErrorMessage = "internal error, see server logs"

// coordinator is the concrete implementation of Coordinator
type coordinator struct {
	table      domainwf.Table
	eventLog   port.EventLog
	dispatcher dispatcher.Dispatcher
	recorder   port.TransitionRecorder
	hooks      TransitionHooks
	logger     Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures the coordinator
type Option func(*coordinator)

// WithRecorder sets the audit store transition records are handed to
func WithRecorder(r port.TransitionRecorder) Option {
	return func(c *coordinator) {
		c.recorder = r
	}
}

// WithHooks sets the events processed around transitions
func WithHooks(h TransitionHooks) Option {
	return func(c *coordinator) {
		c.hooks = h
	}
}

// WithLogger sets a logger for the coordinator
func WithLogger(logger Logger) Option {
	return func(c *coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for coordinator spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *coordinator) {
		c.tracer = tracer
	}
}

// WithClock overrides the time source for transition timestamps
func WithClock(now func() time.Time) Option {
	return func(c *coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a new workflow coordinator
func NewCoordinator(
	table domainwf.Table,
	eventLog port.EventLog,
	d dispatcher.Dispatcher,
	opts ...Option,
) Coordinator {
	c := &coordinator{
		table:      table,
		eventLog:   eventLog,
		dispatcher: d,
		hooks:      TransitionHooks{},
		logger:     nopLogger{},
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExecuteTransition validates the move, runs pre hooks, hands the record to
// the recorder and runs post hooks. Hook and recorder failures are logged and
// never undo the transition.
func (c *coordinator) ExecuteTransition(ctx context.Context, req domainwf.TransitionRequest) (result *TransitionResult) {
	ctx, span := c.tracer.Start(ctx, "workflow.ExecuteTransition",
		trace.WithAttributes(
			attribute.Int64("reception.aggregate_id", req.AggregateID),
			attribute.String("reception.from", req.From.String()),
			attribute.String("reception.to", req.To.String()),
		),
	)
	defer span.End()

	result = &TransitionResult{
		AggregateID:   req.AggregateID,
		PreviousState: req.From,
		NewState:      req.From,
		Timestamp:     c.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Transition panic recovered",
				"aggregate_id", req.AggregateID,
				"from", req.From,
				"to", req.To,
				"panic", r,
			)
			span.SetStatus(codes.Error, "panic")
			result.Success = false
			result.NewState = req.From
			result.Message = internalErrorMessage
		}
	}()

	if req.AggregateID <= 0 {
		result.Message = fmt.Sprintf("aggregate id must be positive, got %d", req.AggregateID)
		span.SetStatus(codes.Error, result.Message)
		return result
	}

	if err := c.table.Evaluate(ctx, req); err != nil {
		c.logger.Warn("Transition rejected",
			"aggregate_id", req.AggregateID,
			"from", req.From,
			"to", req.To,
			"error", err,
		)
		result.Message = err.Error()
		span.SetStatus(codes.Error, result.Message)
		return result
	}

	hooks := c.hooks.For(req.From, req.To)
	result.HookResults = append(result.HookResults, c.runHooks(ctx, req, hooks.Pre, "pre")...)

	c.record(ctx, req, result.Timestamp)

	result.HookResults = append(result.HookResults, c.runHooks(ctx, req, hooks.Post, "post")...)

	result.Success = true
	result.NewState = req.To
	result.Message = fmt.Sprintf("transitioned from %s to %s", req.From, req.To)

	c.logger.Info("Transition executed",
		"aggregate_id", req.AggregateID,
		"from", req.From,
		"to", req.To,
		"actor_id", req.ActorID,
		"hook_count", len(result.HookResults),
	)
	span.SetStatus(codes.Ok, "")

	return result
}

// ProcessEvent builds a new event, stores it and dispatches it
func (c *coordinator) ProcessEvent(ctx context.Context, aggregateID int64, eventType event.Type, payload map[string]interface{}, actorID string) *EventProcessingResult {
	evt := event.NewEvent(eventType, aggregateID, actorID, payload)
	return c.process(ctx, evt, true)
}

// FilterEvents queries the event log
func (c *coordinator) FilterEvents(ctx context.Context, criteria event.Criteria) []*event.Event {
	return c.eventLog.GetByCriteria(ctx, criteria)
}

// process runs the store-then-dispatch pipeline. With persist false the
// event is dispatched as is, which is how default replay re-drives history.
func (c *coordinator) process(ctx context.Context, evt *event.Event, persist bool) (result *EventProcessingResult) {
	ctx, span := c.tracer.Start(ctx, "workflow.ProcessEvent",
		trace.WithAttributes(
			attribute.String("reception.event_id", evt.ID),
			attribute.Int64("reception.aggregate_id", evt.AggregateID),
			attribute.String("reception.event_type", evt.Type.String()),
			attribute.Bool("reception.persist", persist),
		),
	)
	defer span.End()

	result = &EventProcessingResult{
		EventID:        evt.ID,
		AggregateID:    evt.AggregateID,
		EventType:      evt.Type,
		HandlerResults: []dispatcher.HandlerResult{},
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Event processing panic recovered",
				"event_id", evt.ID,
				"event_type", evt.Type,
				"panic", r,
			)
			span.SetStatus(codes.Error, "panic")
			result.Success = false
			result.Message = internalErrorMessage
			result.Errors = append(result.Errors, internalErrorMessage)
		}
	}()

	if err := evt.Validate(); err != nil {
		result.Message = err.Error()
		result.Errors = []string{err.Error()}
		span.SetStatus(codes.Error, result.Message)
		return result
	}

	if persist {
		if err := c.eventLog.Store(ctx, evt); err != nil {
			c.logger.Warn("Event not stored, dispatching anyway",
				"event_id", evt.ID,
				"event_type", evt.Type,
				"error", err,
			)
		} else {
			result.Stored = true
		}
	}

	result.HandlerResults = append(result.HandlerResults, c.dispatcher.DispatchSync(ctx, evt)...)
	result.HandlerResults = append(result.HandlerResults, c.dispatcher.DispatchAsync(ctx, evt)...)

	for _, hr := range result.HandlerResults {
		if !hr.Success {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", hr.HandlerName, hr.Error))
		}
	}
	result.Success = len(result.Errors) == 0

	span.SetAttributes(attribute.Int("reception.handler_count", len(result.HandlerResults)))
	if result.Success {
		result.Message = fmt.Sprintf("processed by %d handlers", len(result.HandlerResults))
		span.SetStatus(codes.Ok, "")
	} else {
		result.Message = fmt.Sprintf("%d of %d handlers failed", result.FailedHandlers(), len(result.HandlerResults))
		span.SetStatus(codes.Error, result.Message)
	}

	return result
}

// runHooks processes each hook event in order and never stops early
func (c *coordinator) runHooks(ctx context.Context, req domainwf.TransitionRequest, types []event.Type, phase string) []*EventProcessingResult {
	results := make([]*EventProcessingResult, 0, len(types))
	for _, t := range types {
		payload := make(map[string]interface{}, len(req.Payload)+4)
		for k, v := range req.Payload {
			payload[k] = v
		}
		payload["from"] = req.From.String()
		payload["to"] = req.To.String()
		payload["reason"] = req.Reason
		payload["hook"] = phase

		res := c.ProcessEvent(ctx, req.AggregateID, t, payload, req.ActorID)
		if !res.Success {
			c.logger.Warn("Transition hook failed",
				"aggregate_id", req.AggregateID,
				"phase", phase,
				"event_type", t,
				"errors", res.Errors,
			)
		}
		results = append(results, res)
	}
	return results
}

func (c *coordinator) record(ctx context.Context, req domainwf.TransitionRequest, at time.Time) {
	if c.recorder == nil {
		return
	}

	record := &entity.TransitionRecord{
		AggregateID:   req.AggregateID,
		PreviousState: req.From.String(),
		NewState:      req.To.String(),
		Reason:        req.Reason,
		ActorID:       req.ActorID,
		Timestamp:     at,
	}
	if err := c.recorder.Record(ctx, record); err != nil {
		c.logger.Error("Failed to record transition",
			"aggregate_id", req.AggregateID,
			"from", req.From,
			"to", req.To,
			"error", err,
		)
	}
}
