package event

import "time"

// Criteria filters events. Zero-valued fields impose no constraint and all
// set fields must match.
type Criteria struct {
	AggregateID int64      `json:"aggregate_id,omitempty"`
	EventTypes  []Type     `json:"event_types,omitempty"`
	FromDate    *time.Time `json:"from_date,omitempty"`
	ToDate      *time.Time `json:"to_date,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
}

// Matches reports whether evt satisfies every predicate set on the criteria.
// Date bounds are inclusive.
func (c Criteria) Matches(evt *Event) bool {
	if evt == nil {
		return false
	}
	if c.AggregateID != 0 && evt.AggregateID != c.AggregateID {
		return false
	}
	if len(c.EventTypes) > 0 && !containsType(c.EventTypes, evt.Type) {
		return false
	}
	if c.FromDate != nil && evt.Timestamp.Before(*c.FromDate) {
		return false
	}
	if c.ToDate != nil && evt.Timestamp.After(*c.ToDate) {
		return false
	}
	if c.UserID != "" && evt.ActorID != c.UserID {
		return false
	}
	return true
}

func containsType(types []Type, t Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
