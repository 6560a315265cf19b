package handlers

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// AnalyticsHandler counts processed events per type
type AnalyticsHandler struct {
	events metric.Int64Counter
}

// NewAnalyticsHandler creates the counter on the given meter
func NewAnalyticsHandler(meter metric.Meter) (*AnalyticsHandler, error) {
	events, err := meter.Int64Counter(
		"reception.events",
		metric.WithDescription("Reception events processed, by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &AnalyticsHandler{events: events}, nil
}

// Name returns the handler name
func (h *AnalyticsHandler) Name() string {
	return "analytics"
}

// Handle increments the event counter
func (h *AnalyticsHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	h.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", evt.Type.String()),
	))
	return dispatcher.Succeeded(h.Name(), nil)
}
