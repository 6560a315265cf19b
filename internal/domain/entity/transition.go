package entity

import "time"

// TransitionRecord is the audit trail entry for one reception state move
type TransitionRecord struct {
	ID            int64     `json:"id"`
	AggregateID   int64     `json:"aggregate_id"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Reason        string    `json:"reason"`
	ActorID       string    `json:"actor_id"`
	Timestamp     time.Time `json:"timestamp"`
}
