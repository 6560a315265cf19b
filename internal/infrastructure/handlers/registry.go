package handlers

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// Deps are the collaborators the default handlers need
type Deps struct {
	Patients  port.PatientDirectory
	Insurance port.InsuranceCatalog
	Notifier  port.Notifier
	Meter     metric.Meter
	Logger    *zap.Logger

	// NotificationChannels get one notification handler each
	NotificationChannels []string
}

// DefaultRegistry wires the reception handlers per event type
func DefaultRegistry(deps Deps) (*dispatcher.Registry, error) {
	if deps.Patients == nil || deps.Insurance == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("patients, insurance and notifier are required")
	}
	if deps.Meter == nil {
		return nil, fmt.Errorf("meter is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	analytics, err := NewAnalyticsHandler(deps.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics handler: %w", err)
	}

	audit := NewAuditHandler(logger)
	patient := NewPatientValidationHandler(deps.Patients, logger)
	insurance := NewInsuranceValidationHandler(deps.Insurance, logger)

	notifiers := make([]dispatcher.Handler, 0, len(deps.NotificationChannels))
	for _, channel := range deps.NotificationChannels {
		notifiers = append(notifiers, NewNotificationHandler(channel, deps.Notifier))
	}

	reg := dispatcher.NewRegistry().
		Sync(event.TypePatientValidation, patient, audit).
		Sync(event.TypeInsuranceValidation, insurance, audit).
		Sync(event.TypePaymentProcessing, audit).
		Sync(event.TypeNotificationSending, audit).
		Sync(event.TypeAuditLogging, audit)

	reg.Async(event.TypePatientValidation, analytics).
		Async(event.TypeInsuranceValidation, analytics).
		Async(event.TypePaymentProcessing, append(notifiers, analytics)...).
		Async(event.TypeNotificationSending, notifiers...)

	return reg, nil
}
