package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/port"
)

// PatientDirectory answers patient lookups from the patients table
type PatientDirectory struct {
	db     *DB
	logger *zap.Logger
}

// NewPatientDirectory creates a new patient directory
func NewPatientDirectory(db *DB, logger *zap.Logger) *PatientDirectory {
	return &PatientDirectory{
		db:     db,
		logger: logger,
	}
}

// PatientExists reports whether an active patient with the ID exists
func (d *PatientDirectory) PatientExists(ctx context.Context, patientID string) (bool, error) {
	query := `SELECT active FROM patients WHERE patient_id = ?`

	var active bool
	err := d.db.executorFor(ctx).QueryRowContext(ctx, query, patientID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		d.logger.Error("Failed to look up patient", zap.String("patient_id", patientID), zap.Error(err))
		return false, fmt.Errorf("failed to look up patient: %w", err)
	}
	return active, nil
}

// Upsert registers or updates a patient
func (d *PatientDirectory) Upsert(ctx context.Context, patientID, fullName string, active bool) error {
	query := `
		INSERT INTO patients (patient_id, full_name, active) VALUES (?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET full_name = excluded.full_name, active = excluded.active
	`
	if _, err := d.db.executorFor(ctx).ExecContext(ctx, query, patientID, fullName, active); err != nil {
		return fmt.Errorf("failed to upsert patient: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.PatientDirectory = (*PatientDirectory)(nil)
