package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// InsuranceValidationHandler checks the event's insurance plan against the catalog
type InsuranceValidationHandler struct {
	catalog port.InsuranceCatalog
	logger  *zap.Logger
}

// NewInsuranceValidationHandler creates a new insurance validation handler
func NewInsuranceValidationHandler(catalog port.InsuranceCatalog, logger *zap.Logger) *InsuranceValidationHandler {
	return &InsuranceValidationHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// Name returns the handler name
func (h *InsuranceValidationHandler) Name() string {
	return "insurance-validation"
}

// Handle requires payload.plan_id to name an active plan. When
// payload.provider_id is present it must match the plan's provider.
func (h *InsuranceValidationHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	planID := evt.GetPayloadString("plan_id")
	if planID == "" {
		return dispatcher.Failed(h.Name(), fmt.Errorf("plan_id is required"))
	}

	plan, err := h.catalog.GetPlan(ctx, planID)
	if err != nil {
		h.logger.Error("Insurance plan lookup failed",
			zap.Int64("aggregate_id", evt.AggregateID),
			zap.String("plan_id", planID),
			zap.Error(err))
		return dispatcher.Failed(h.Name(), fmt.Errorf("plan lookup failed: %w", err))
	}
	if plan == nil {
		return dispatcher.Failed(h.Name(), fmt.Errorf("plan %s not found", planID))
	}
	if !plan.Active {
		return dispatcher.Failed(h.Name(), fmt.Errorf("plan %s is inactive", planID))
	}

	if providerID := evt.GetPayloadString("provider_id"); providerID != "" && providerID != plan.ProviderID {
		return dispatcher.Failed(h.Name(), fmt.Errorf("plan %s does not belong to provider %s", planID, providerID))
	}

	return dispatcher.Succeeded(h.Name(), map[string]interface{}{
		"plan_id":     plan.PlanID,
		"provider_id": plan.ProviderID,
	})
}
