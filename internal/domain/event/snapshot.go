package event

import "time"

// Snapshot is a named, immutable capture of an aggregate's event sequence
// up to an optional cutoff
type Snapshot struct {
	ID          string     `json:"id"`
	AggregateID int64      `json:"aggregate_id"`
	CreatedAt   time.Time  `json:"created_at"`
	AtTime      *time.Time `json:"at_time,omitempty"`
	Events      []*Event   `json:"events"`
}

// EventCount returns the number of captured events
func (s *Snapshot) EventCount() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// Statistics summarises an aggregate's event sequence
type Statistics struct {
	AggregateID    int64        `json:"aggregate_id"`
	TotalCount     int          `json:"total_count"`
	CountsByType   map[Type]int `json:"counts_by_type"`
	FirstEventAt   *time.Time   `json:"first_event_at,omitempty"`
	LastEventAt    *time.Time   `json:"last_event_at,omitempty"`
	DistinctActors int          `json:"distinct_actors"`
}

// ComputeStatistics builds statistics over events, which must be sorted by timestamp
func ComputeStatistics(aggregateID int64, events []*Event) Statistics {
	stats := Statistics{
		AggregateID:  aggregateID,
		CountsByType: make(map[Type]int),
	}
	if len(events) == 0 {
		return stats
	}

	actors := make(map[string]struct{})
	for _, evt := range events {
		stats.CountsByType[evt.Type]++
		if evt.ActorID != "" {
			actors[evt.ActorID] = struct{}{}
		}
	}

	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp
	stats.TotalCount = len(events)
	stats.FirstEventAt = &first
	stats.LastEventAt = &last
	stats.DistinctActors = len(actors)
	return stats
}
