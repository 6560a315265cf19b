package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/port"
)

// InsuranceCatalog answers plan lookups from the insurance_plans table
type InsuranceCatalog struct {
	db     *DB
	logger *zap.Logger
}

// NewInsuranceCatalog creates a new insurance catalog
func NewInsuranceCatalog(db *DB, logger *zap.Logger) *InsuranceCatalog {
	return &InsuranceCatalog{
		db:     db,
		logger: logger,
	}
}

// GetPlan returns the plan, or nil when it is unknown
func (c *InsuranceCatalog) GetPlan(ctx context.Context, planID string) (*port.InsurancePlan, error) {
	query := `SELECT plan_id, provider_id, active FROM insurance_plans WHERE plan_id = ?`

	var plan port.InsurancePlan
	err := c.db.executorFor(ctx).QueryRowContext(ctx, query, planID).Scan(&plan.PlanID, &plan.ProviderID, &plan.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to look up insurance plan", zap.String("plan_id", planID), zap.Error(err))
		return nil, fmt.Errorf("failed to look up insurance plan: %w", err)
	}
	return &plan, nil
}

// Upsert registers or updates a plan
func (c *InsuranceCatalog) Upsert(ctx context.Context, plan port.InsurancePlan) error {
	query := `
		INSERT INTO insurance_plans (plan_id, provider_id, active) VALUES (?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET provider_id = excluded.provider_id, active = excluded.active
	`
	if _, err := c.db.executorFor(ctx).ExecContext(ctx, query, plan.PlanID, plan.ProviderID, plan.Active); err != nil {
		return fmt.Errorf("failed to upsert insurance plan: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.InsuranceCatalog = (*InsuranceCatalog)(nil)
