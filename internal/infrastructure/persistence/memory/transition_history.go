package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/entity"
)

// TransitionHistory is the in-memory transition audit store
type TransitionHistory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64][]*entity.TransitionRecord
}

// NewTransitionHistory creates an empty history
func NewTransitionHistory() *TransitionHistory {
	return &TransitionHistory{
		records: make(map[int64][]*entity.TransitionRecord),
	}
}

// Record appends a copy of the record and assigns its ID
func (h *TransitionHistory) Record(ctx context.Context, record *entity.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("transition record is nil")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	record.ID = h.nextID

	stored := *record
	h.records[record.AggregateID] = append(h.records[record.AggregateID], &stored)
	return nil
}

// GetByAggregateID returns the aggregate's records in recording order
func (h *TransitionHistory) GetByAggregateID(ctx context.Context, aggregateID int64) ([]*entity.TransitionRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stored := h.records[aggregateID]
	result := make([]*entity.TransitionRecord, len(stored))
	for i, r := range stored {
		c := *r
		result[i] = &c
	}
	return result, nil
}

// Verify interface compliance
var _ port.TransitionRecorder = (*TransitionHistory)(nil)
