package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

const meterName = "github.com/garyjia/reception-workflow/dispatcher"

const unnamedHandler = "unnamed"

// Dispatcher routes events to registered handlers and collects one result
// per handler. It never returns early on a handler failure.
type Dispatcher interface {
	// DispatchSync runs the synchronous handlers strictly in registration order
	DispatchSync(ctx context.Context, evt *event.Event) []HandlerResult

	// DispatchAsync starts every asynchronous handler concurrently and waits
	// for all of them. Results are in registration order.
	DispatchAsync(ctx context.Context, evt *event.Event) []HandlerResult

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo
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

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	registry *Registry
	logger   Logger

	duration   metric.Float64Histogram
	executions metric.Int64Counter
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMeter records handler metrics on the given meter instead of the global one
func WithMeter(meter metric.Meter) Option {
	return func(d *eventDispatcher) {
		d.initInstruments(meter)
	}
}

// NewDispatcher creates a dispatcher over a frozen copy of the registry
func NewDispatcher(registry *Registry, opts ...Option) Dispatcher {
	d := &eventDispatcher{
		registry: registry.clone(),
		logger:   nopLogger{},
	}
	d.initInstruments(otel.Meter(meterName))

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) initInstruments(meter metric.Meter) {
	// The OTel API hands back noop instruments alongside any error
	d.duration, _ = meter.Float64Histogram(
		"reception.handler.duration",
		metric.WithDescription("Duration of event handler execution in seconds"),
		metric.WithUnit("s"),
	)
	d.executions, _ = meter.Int64Counter(
		"reception.handler.executions",
		metric.WithDescription("Total number of event handler executions"),
		metric.WithUnit("{execution}"),
	)
}

// DispatchSync runs synchronous handlers in registration order
func (d *eventDispatcher) DispatchSync(ctx context.Context, evt *event.Event) []HandlerResult {
	if evt == nil {
		return []HandlerResult{}
	}

	handlers := d.registry.SyncHandlers(evt.Type)
	if len(handlers) == 0 {
		d.logger.Info("No synchronous handlers registered",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return []HandlerResult{}
	}

	d.logger.Info("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"handler_count", len(handlers),
	)

	results := make([]HandlerResult, 0, len(handlers))
	for _, h := range handlers {
		results = append(results, d.execute(ctx, evt, h, ModeSync))
	}
	return results
}

// DispatchAsync fans out to asynchronous handlers and waits for all of them
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) []HandlerResult {
	if evt == nil {
		return []HandlerResult{}
	}

	handlers := d.registry.AsyncHandlers(evt.Type)
	if len(handlers) == 0 {
		d.logger.Info("No asynchronous handlers registered",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return []HandlerResult{}
	}

	d.logger.Info("Dispatching event asynchronously",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"handler_count", len(handlers),
	)

	results := make([]HandlerResult, len(handlers))
	var g errgroup.Group
	for i, h := range handlers {
		g.Go(func() error {
			results[i] = d.execute(ctx, evt, h, ModeAsync)
			return nil
		})
	}
	// Handlers report failure through their results, never through the group
	_ = g.Wait()

	return results
}

// ListHandlers returns registered handlers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	return d.registry.ListHandlers(eventType)
}

// execute runs one handler, timing it and turning any panic into a failed result
func (d *eventDispatcher) execute(ctx context.Context, evt *event.Event, h Handler, mode Mode) HandlerResult {
	start := time.Now()
	result := d.safeExecute(ctx, evt, h)
	result.Duration = time.Since(start)

	status := "ok"
	if !result.Success {
		status = "error"
		d.logger.Error("Handler error",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"handler_name", result.HandlerName,
			"mode", mode,
			"error", result.Error,
		)
	}

	attrs := metric.WithAttributes(
		attribute.String("handler", result.HandlerName),
		attribute.String("event_type", evt.Type.String()),
		attribute.String("mode", string(mode)),
		attribute.String("status", status),
	)
	d.duration.Record(ctx, result.Duration.Seconds(), attrs)
	d.executions.Add(ctx, 1, attrs)

	return result
}

// safeExecute runs a handler with panic recovery. Name is resolved inside
// the recovered region so a panicking Name cannot escape an async goroutine.
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, h Handler) (result HandlerResult) {
	name := unnamedHandler
	defer func() {
		if r := recover(); r != nil {
			result = Failed(name, fmt.Errorf("handler panic: %v", r))
			d.logger.Error("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", name,
				"panic", r,
			)
		}
	}()

	name = h.Name()
	result = h.Handle(ctx, evt)
	if result.HandlerName == "" {
		result.HandlerName = name
	}
	return result
}
