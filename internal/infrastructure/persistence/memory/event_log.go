// Package memory provides process-local implementations of the persistence ports.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// EventLog implements port.EventLog in memory.
//
// A single log-wide lock guards all three indices so the uniqueness and
// ordering invariants hold under concurrent callers. Stored events are
// deep copies and every read returns fresh copies.
//
// Events with equal timestamps are ordered by first insertion. The sequence
// assigned to an ID outlives a clear, so a restored snapshot keeps its place.
type EventLog struct {
	mu          sync.RWMutex
	events      []*event.Event
	byAggregate map[int64][]*event.Event
	byID        map[string]*event.Event
	sequence    map[string]uint64
	nextSeq     uint64
	snapshots   map[string]*event.Snapshot
	logger      *zap.Logger
}

// NewEventLog creates an empty event log
func NewEventLog(logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{
		byAggregate: make(map[int64][]*event.Event),
		byID:        make(map[string]*event.Event),
		sequence:    make(map[string]uint64),
		snapshots:   make(map[string]*event.Snapshot),
		logger:      logger,
	}
}

// Store appends an event to the log
func (l *EventLog) Store(ctx context.Context, evt *event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storeLocked(evt); err != nil {
		l.logger.Warn("Event rejected",
			zap.String("event_id", eventID(evt)),
			zap.Error(err))
		return err
	}

	l.logger.Debug("Event stored",
		zap.String("event_id", evt.ID),
		zap.Int64("aggregate_id", evt.AggregateID),
		zap.String("event_type", evt.Type.String()))
	return nil
}

// GetByAggregate returns the aggregate's events at or after from
func (l *EventLog) GetByAggregate(ctx context.Context, aggregateID int64, from *time.Time) (result []*event.Event) {
	defer l.recoverRead("get_by_aggregate", aggregateID, func() { result = []*event.Event{} })

	l.mu.RLock()
	defer l.mu.RUnlock()

	bucket := l.byAggregate[aggregateID]
	result = make([]*event.Event, 0, len(bucket))
	for _, evt := range bucket {
		if from != nil && evt.Timestamp.Before(*from) {
			continue
		}
		result = append(result, evt.Clone())
	}
	return result
}

// GetByCriteria returns events matching all set predicates, ordered by timestamp
func (l *EventLog) GetByCriteria(ctx context.Context, criteria event.Criteria) (result []*event.Event) {
	defer l.recoverRead("get_by_criteria", criteria.AggregateID, func() { result = []*event.Event{} })

	l.mu.RLock()
	defer l.mu.RUnlock()

	source := l.events
	if criteria.AggregateID != 0 {
		source = l.byAggregate[criteria.AggregateID]
	}

	result = make([]*event.Event, 0)
	for _, evt := range source {
		if criteria.Matches(evt) {
			result = append(result, evt.Clone())
		}
	}

	if criteria.AggregateID == 0 {
		l.sortLocked(result)
	}
	return result
}

// GetLast returns the most recent event of the given type for the aggregate
func (l *EventLog) GetLast(ctx context.Context, aggregateID int64, eventType event.Type) (result *event.Event, found bool) {
	defer l.recoverRead("get_last", aggregateID, func() { result, found = nil, false })

	l.mu.RLock()
	defer l.mu.RUnlock()

	bucket := l.byAggregate[aggregateID]
	for i := len(bucket) - 1; i >= 0; i-- {
		if bucket[i].Type == eventType {
			return bucket[i].Clone(), true
		}
	}
	return nil, false
}

// Count returns the number of events of the given type for the aggregate
func (l *EventLog) Count(ctx context.Context, aggregateID int64, eventType event.Type) (count int) {
	defer l.recoverRead("count", aggregateID, func() { count = 0 })

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, evt := range l.byAggregate[aggregateID] {
		if evt.Type == eventType {
			count++
		}
	}
	return count
}

// Statistics summarises the aggregate's event sequence
func (l *EventLog) Statistics(ctx context.Context, aggregateID int64) (stats event.Statistics) {
	defer l.recoverRead("statistics", aggregateID, func() { stats = event.ComputeStatistics(aggregateID, nil) })

	l.mu.RLock()
	defer l.mu.RUnlock()

	return event.ComputeStatistics(aggregateID, l.byAggregate[aggregateID])
}

// CreateSnapshot captures the aggregate's events at or before at
func (l *EventLog) CreateSnapshot(ctx context.Context, aggregateID int64, at *time.Time) (*event.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.byAggregate[aggregateID]
	if len(bucket) == 0 {
		return nil, fmt.Errorf("%w: aggregate %d has no events", event.ErrNoEvents, aggregateID)
	}

	captured := make([]*event.Event, 0, len(bucket))
	for _, evt := range bucket {
		if at != nil && evt.Timestamp.After(*at) {
			continue
		}
		captured = append(captured, evt.Clone())
	}
	if len(captured) == 0 {
		return nil, fmt.Errorf("%w: aggregate %d has no events before %s", event.ErrNoEvents, aggregateID, at.Format(time.RFC3339))
	}

	snapshot := &event.Snapshot{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		CreatedAt:   time.Now(),
		Events:      captured,
	}
	if at != nil {
		cutoff := *at
		snapshot.AtTime = &cutoff
	}
	l.snapshots[snapshot.ID] = snapshot

	l.logger.Info("Snapshot created",
		zap.String("snapshot_id", snapshot.ID),
		zap.Int64("aggregate_id", aggregateID),
		zap.Int("event_count", len(captured)))

	return cloneSnapshot(snapshot), nil
}

// RestoreSnapshot clears the aggregate's live sequence and re-stores every
// captured event through the normal store path. The snapshot is validated
// in full before anything is cleared.
func (l *EventLog) RestoreSnapshot(ctx context.Context, snapshot *event.Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, evt := range snapshot.Events {
		if existing, ok := l.byID[evt.ID]; ok && existing.AggregateID != snapshot.AggregateID {
			return fmt.Errorf("%w: event %s belongs to aggregate %d", event.ErrDuplicateEvent, evt.ID, existing.AggregateID)
		}
	}

	cleared := l.clearAggregateLocked(snapshot.AggregateID)

	for _, evt := range snapshot.Events {
		if err := l.storeLocked(evt); err != nil {
			// Unreachable after validation; surface it rather than hide a partial restore
			l.logger.Error("Snapshot restore left aggregate partially restored",
				zap.String("snapshot_id", snapshot.ID),
				zap.String("event_id", evt.ID),
				zap.Error(err))
			return fmt.Errorf("restore snapshot %s: %w", snapshot.ID, err)
		}
	}

	l.logger.Info("Snapshot restored",
		zap.String("snapshot_id", snapshot.ID),
		zap.Int64("aggregate_id", snapshot.AggregateID),
		zap.Int("cleared_events", cleared),
		zap.Int("restored_events", len(snapshot.Events)))
	return nil
}

// GetSnapshot returns a snapshot previously created by this log
func (l *EventLog) GetSnapshot(ctx context.Context, snapshotID string) (*event.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot, ok := l.snapshots[snapshotID]
	if !ok {
		return nil, false
	}
	return cloneSnapshot(snapshot), true
}

// storeLocked validates and indexes evt; callers hold the write lock
func (l *EventLog) storeLocked(evt *event.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	if _, exists := l.byID[evt.ID]; exists {
		return fmt.Errorf("%w: %s", event.ErrDuplicateEvent, evt.ID)
	}

	stored := evt.Clone()
	if _, seen := l.sequence[stored.ID]; !seen {
		l.nextSeq++
		l.sequence[stored.ID] = l.nextSeq
	}
	l.events = append(l.events, stored)
	l.byID[stored.ID] = stored

	bucket := append(l.byAggregate[stored.AggregateID], stored)
	l.sortLocked(bucket)
	l.byAggregate[stored.AggregateID] = bucket
	return nil
}

// clearAggregateLocked removes every index entry for the aggregate
func (l *EventLog) clearAggregateLocked(aggregateID int64) int {
	bucket := l.byAggregate[aggregateID]
	for _, evt := range bucket {
		delete(l.byID, evt.ID)
	}
	delete(l.byAggregate, aggregateID)

	l.events = slices.DeleteFunc(l.events, func(evt *event.Event) bool {
		return evt.AggregateID == aggregateID
	})
	return len(bucket)
}

func (l *EventLog) recoverRead(op string, aggregateID int64, fallback func()) {
	if r := recover(); r != nil {
		l.logger.Error("Event log read failed, returning empty result",
			zap.String("operation", op),
			zap.Int64("aggregate_id", aggregateID),
			zap.Any("panic", r))
		fallback()
	}
}

func validateSnapshot(snapshot *event.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot is nil", event.ErrInvalidSnapshot)
	}
	if snapshot.AggregateID <= 0 {
		return fmt.Errorf("%w: aggregate id must be positive", event.ErrInvalidSnapshot)
	}

	seen := make(map[string]struct{}, len(snapshot.Events))
	for _, evt := range snapshot.Events {
		if err := evt.Validate(); err != nil {
			return fmt.Errorf("%w: %v", event.ErrInvalidSnapshot, err)
		}
		if evt.AggregateID != snapshot.AggregateID {
			return fmt.Errorf("%w: event %s belongs to aggregate %d", event.ErrInvalidSnapshot, evt.ID, evt.AggregateID)
		}
		if _, dup := seen[evt.ID]; dup {
			return fmt.Errorf("%w: event %s captured twice", event.ErrInvalidSnapshot, evt.ID)
		}
		seen[evt.ID] = struct{}{}
	}
	return nil
}

func cloneSnapshot(s *event.Snapshot) *event.Snapshot {
	c := *s
	c.Events = make([]*event.Event, len(s.Events))
	for i, evt := range s.Events {
		c.Events[i] = evt.Clone()
	}
	return &c
}

// sortLocked orders by timestamp, then insertion sequence; callers hold a lock
func (l *EventLog) sortLocked(events []*event.Event) {
	slices.SortStableFunc(events, func(a, b *event.Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(l.sequence[a.ID], l.sequence[b.ID])
	})
}

func eventID(evt *event.Event) string {
	if evt == nil {
		return ""
	}
	return evt.ID
}

// Verify interface compliance
var _ port.EventLog = (*EventLog)(nil)
