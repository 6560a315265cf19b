package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents an immutable fact recorded against a reception aggregate
type Event struct {
	ID            string                 `json:"id"`
	AggregateID   int64                  `json:"aggregate_id"`
	Type          Type                   `json:"type"`
	Payload       map[string]interface{} `json:"payload"`
	ActorID       string                 `json:"actor_id"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// NewEvent creates a new domain event with a generated ID and the current timestamp
func NewEvent(eventType Type, aggregateID int64, actorID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:          NewID(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     copyPayload(payload),
		ActorID:     actorID,
		Timestamp:   time.Now(),
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, aggregateID int64, actorID string, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, aggregateID, actorID, payload)
	evt.CorrelationID = correlationID
	return evt
}

// NewID returns a globally unique event identifier
func NewID() string {
	return uuid.NewString()
}

// Clone returns a copy of the event that shares nothing mutable with the original
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Payload = copyPayload(e.Payload)
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// Validate checks the invariants an event must satisfy before it can be stored
func (e *Event) Validate() error {
	if e == nil {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		return errorf(ErrInvalidEvent, "event id is required")
	}
	if e.AggregateID <= 0 {
		return errorf(ErrInvalidEvent, "aggregate id must be positive, got %d", e.AggregateID)
	}
	if !e.Type.IsValid() {
		return errorf(ErrInvalidEvent, "unknown event type %q", e.Type)
	}
	return nil
}

// copyPayload copies the payload along with any nested JSON maps and slices
func copyPayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyPayload(val)
	case []interface{}:
		if val == nil {
			return val
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
