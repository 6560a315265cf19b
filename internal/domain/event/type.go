package event

// Type identifies the type of domain event
type Type string

const (
	TypePatientValidation   Type = "patient.validation"
	TypeInsuranceValidation Type = "insurance.validation"
	TypePaymentProcessing   Type = "payment.processing"
	TypeNotificationSending Type = "notification.sending"
	TypeAuditLogging        Type = "audit.logging"
)

// AllTypes lists every event type in declaration order
var AllTypes = []Type{
	TypePatientValidation,
	TypeInsuranceValidation,
	TypePaymentProcessing,
	TypeNotificationSending,
	TypeAuditLogging,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePatientValidation,
		TypeInsuranceValidation,
		TypePaymentProcessing,
		TypeNotificationSending,
		TypeAuditLogging:
		return true
	default:
		return false
	}
}

// ParseType converts a string into a Type, reporting whether it is known
func ParseType(s string) (Type, bool) {
	t := Type(s)
	return t, t.IsValid()
}
