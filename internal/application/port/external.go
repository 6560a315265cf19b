package port

import "context"

// PatientDirectory looks up patients owned by the surrounding system
type PatientDirectory interface {
	// PatientExists reports whether the patient is known and active
	PatientExists(ctx context.Context, patientID string) (bool, error)
}

// InsurancePlan describes a plan as seen by the reception workflow
type InsurancePlan struct {
	PlanID     string
	ProviderID string
	Active     bool
}

// InsuranceCatalog looks up insurance plans and providers
type InsuranceCatalog interface {
	// GetPlan returns the plan or nil when unknown
	GetPlan(ctx context.Context, planID string) (*InsurancePlan, error)
}

// Notification is a message to deliver on one channel
type Notification struct {
	Channel     string
	AggregateID int64
	Recipient   string
	Subject     string
	Body        string
}

// Notifier delivers notifications to patients or staff
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
