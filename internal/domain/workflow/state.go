package workflow

import "strings"

// State represents a step in the reception lifecycle
type State string

const (
	StateInitialized         State = "INITIALIZED"
	StatePatientVerification State = "PATIENT_VERIFICATION"
	StateInsuranceValidation State = "INSURANCE_VALIDATION"
	StateServiceSelection    State = "SERVICE_SELECTION"
	StatePaymentProcessing   State = "PAYMENT_PROCESSING"
	StateCompleted           State = "COMPLETED"
	StateCancelled           State = "CANCELLED"
	StateArchived            State = "ARCHIVED"
)

// AllStates lists every state in lifecycle order
var AllStates = []State{
	StateInitialized,
	StatePatientVerification,
	StateInsuranceValidation,
	StateServiceSelection,
	StatePaymentProcessing,
	StateCompleted,
	StateCancelled,
	StateArchived,
}

var validStates = map[State]bool{
	StateInitialized:         true,
	StatePatientVerification: true,
	StateInsuranceValidation: true,
	StateServiceSelection:    true,
	StatePaymentProcessing:   true,
	StateCompleted:           true,
	StateCancelled:           true,
	StateArchived:            true,
}

// IsTerminal returns true if the state has no outgoing transitions
func (s State) IsTerminal() bool {
	return s == StateArchived
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a case-insensitive name into a State
func ParseState(s string) (State, bool) {
	state := State(strings.ToUpper(strings.TrimSpace(s)))
	return state, state.IsValid()
}
