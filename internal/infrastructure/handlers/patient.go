// Package handlers contains the reception event handlers registered with the dispatcher.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// PatientValidationHandler checks that the event's patient is known
type PatientValidationHandler struct {
	directory port.PatientDirectory
	logger    *zap.Logger
}

// NewPatientValidationHandler creates a new patient validation handler
func NewPatientValidationHandler(directory port.PatientDirectory, logger *zap.Logger) *PatientValidationHandler {
	return &PatientValidationHandler{
		directory: directory,
		logger:    logger,
	}
}

// Name returns the handler name
func (h *PatientValidationHandler) Name() string {
	return "patient-validation"
}

// Handle looks up payload.patient_id in the patient directory
func (h *PatientValidationHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	patientID := evt.GetPayloadString("patient_id")
	if patientID == "" {
		return dispatcher.Failed(h.Name(), fmt.Errorf("patient_id is required"))
	}

	exists, err := h.directory.PatientExists(ctx, patientID)
	if err != nil {
		h.logger.Error("Patient lookup failed",
			zap.Int64("aggregate_id", evt.AggregateID),
			zap.String("patient_id", patientID),
			zap.Error(err))
		return dispatcher.Failed(h.Name(), fmt.Errorf("patient lookup failed: %w", err))
	}
	if !exists {
		return dispatcher.Failed(h.Name(), fmt.Errorf("patient %s not found", patientID))
	}

	h.logger.Debug("Patient validated",
		zap.Int64("aggregate_id", evt.AggregateID),
		zap.String("patient_id", patientID))

	return dispatcher.Succeeded(h.Name(), map[string]interface{}{"patient_id": patientID})
}
