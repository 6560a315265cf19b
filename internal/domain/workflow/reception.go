package workflow

import "github.com/garyjia/reception-workflow/internal/domain/event"

// GuardBinding attaches a guard to one edge of the reception table
type GuardBinding struct {
	From  State
	To    State
	Guard GuardFunc
}

// ReceptionTable creates the transition table for the reception workflow.
// Bindings for edges that do not exist are ignored so configuration cannot
// widen the table.
func ReceptionTable(bindings ...GuardBinding) Table {
	builder := NewBuilder()

	builder.Configure(StateInitialized).
		Permit(StatePatientVerification).
		Permit(StateCancelled)

	builder.Configure(StatePatientVerification).
		Permit(StateInsuranceValidation).
		Permit(StateServiceSelection).
		Permit(StateCancelled).
		OnEnter(event.TypePatientValidation)

	builder.Configure(StateInsuranceValidation).
		Permit(StateServiceSelection).
		Permit(StatePatientVerification).
		Permit(StateCancelled).
		OnEnter(event.TypeInsuranceValidation)

	builder.Configure(StateServiceSelection).
		Permit(StatePaymentProcessing).
		Permit(StateCancelled)

	// Failed payments fall back to service selection
	builder.Configure(StatePaymentProcessing).
		Permit(StateCompleted).
		Permit(StateServiceSelection).
		Permit(StateCancelled).
		OnEnter(event.TypePaymentProcessing)

	builder.Configure(StateCompleted).
		Permit(StateArchived).
		OnEnter(event.TypeNotificationSending, event.TypeAuditLogging)

	builder.Configure(StateCancelled).
		Permit(StateArchived).
		OnEnter(event.TypeNotificationSending, event.TypeAuditLogging)

	// ARCHIVED is the only sink - no outgoing transitions

	base := builder.Build()
	for _, b := range bindings {
		if b.Guard == nil || !base.CanTransition(b.From, b.To) {
			continue
		}
		builder.Configure(b.From).PermitIf(b.To, b.Guard)
	}

	return builder.Build()
}
