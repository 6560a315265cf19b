package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/entity"
)

// TransitionRepository is the durable transition audit store
type TransitionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTransitionRepository creates a new transition repository
func NewTransitionRepository(db *DB, logger *zap.Logger) *TransitionRepository {
	return &TransitionRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a transition record and sets its ID
func (r *TransitionRepository) Record(ctx context.Context, record *entity.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("transition record is nil")
	}

	query := `
		INSERT INTO transition_history (
			aggregate_id, previous_state, new_state, reason, actor_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.executorFor(ctx).ExecContext(ctx, query,
		record.AggregateID,
		record.PreviousState,
		record.NewState,
		record.Reason,
		record.ActorID,
		record.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record transition",
			zap.Int64("aggregate_id", record.AggregateID),
			zap.Error(err))
		return fmt.Errorf("failed to record transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByAggregateID returns the aggregate's records oldest first
func (r *TransitionRepository) GetByAggregateID(ctx context.Context, aggregateID int64) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, aggregate_id, previous_state, new_state, reason, actor_id, timestamp
		FROM transition_history
		WHERE aggregate_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.executorFor(ctx).QueryContext(ctx, query, aggregateID)
	if err != nil {
		r.logger.Error("Failed to get transitions by aggregate ID",
			zap.Int64("aggregate_id", aggregateID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.TransitionRecord, 0)
	for rows.Next() {
		var record entity.TransitionRecord
		if err := rows.Scan(
			&record.ID,
			&record.AggregateID,
			&record.PreviousState,
			&record.NewState,
			&record.Reason,
			&record.ActorID,
			&record.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return records, nil
}

// Verify interface compliance
var _ port.TransitionRecorder = (*TransitionRepository)(nil)
