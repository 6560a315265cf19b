package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// AuditHandler writes a structured audit line for every event
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	return &AuditHandler{logger: logger.Named("audit")}
}

// Name returns the handler name
func (h *AuditHandler) Name() string {
	return "audit-logging"
}

// Handle logs the event
func (h *AuditHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.Int64("aggregate_id", evt.AggregateID),
		zap.String("event_type", evt.Type.String()),
		zap.String("actor_id", evt.ActorID),
		zap.Time("timestamp", evt.Timestamp),
	}
	if evt.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", evt.CorrelationID))
	}
	h.logger.Info("Reception event", fields...)

	return dispatcher.Succeeded(h.Name(), nil)
}
