package port

import (
	"context"
	"time"

	"github.com/garyjia/reception-workflow/internal/domain/entity"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// EventLog defines the append-only store of workflow events.
// Reads never fail: unknown aggregates yield empty or zero results.
type EventLog interface {
	// Store appends an event. Returns event.ErrInvalidEvent or event.ErrDuplicateEvent.
	Store(ctx context.Context, evt *event.Event) error

	// GetByAggregate returns the aggregate's events in ascending timestamp order,
	// optionally limited to events at or after from
	GetByAggregate(ctx context.Context, aggregateID int64, from *time.Time) []*event.Event

	// GetByCriteria returns events matching every set predicate, ordered by timestamp
	GetByCriteria(ctx context.Context, criteria event.Criteria) []*event.Event

	// GetLast returns the most recent event of the given type for the aggregate
	GetLast(ctx context.Context, aggregateID int64, eventType event.Type) (*event.Event, bool)

	// Count returns the number of events of the given type for the aggregate
	Count(ctx context.Context, aggregateID int64, eventType event.Type) int

	// Statistics summarises the aggregate's full event sequence
	Statistics(ctx context.Context, aggregateID int64) event.Statistics

	// CreateSnapshot captures events at or before at (all when nil).
	// Returns event.ErrNoEvents when nothing can be captured.
	CreateSnapshot(ctx context.Context, aggregateID int64, at *time.Time) (*event.Snapshot, error)

	// RestoreSnapshot replaces the aggregate's live sequence with the snapshot's events
	RestoreSnapshot(ctx context.Context, snapshot *event.Snapshot) error

	// GetSnapshot returns a snapshot previously created by this log
	GetSnapshot(ctx context.Context, snapshotID string) (*event.Snapshot, bool)
}

// TransitionRecorder is the durable audit store for transition records
type TransitionRecorder interface {
	Record(ctx context.Context, record *entity.TransitionRecord) error
	GetByAggregateID(ctx context.Context, aggregateID int64) ([]*entity.TransitionRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
