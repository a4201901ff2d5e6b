package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
)

// Repository reads and updates the engine-owned slice of case records. Case
// records themselves belong to the case-management service; only status,
// assignment timestamps, and counters are written here.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns the case or a NotFound error.
func (r *Repository) GetByID(ctx context.Context, caseID uuid.UUID) (*models.Case, error) {
	var c models.Case
	err := r.db.WithContext(ctx).Where("id = ?", caseID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
		}
		return nil, fmt.Errorf("query case: %w", err)
	}
	return &c, nil
}

// GetByIDForUpdate loads the case under a row-level lock. All assignment
// mutations for a case run inside a transaction holding this lock so the
// sweeper and concurrent accept/reject calls serialize per case. sqlite has
// no FOR UPDATE; its single-writer lock covers the same ground there.
func (r *Repository) GetByIDForUpdate(tx *gorm.DB, caseID uuid.UUID) (*models.Case, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c models.Case
	err := q.Where("id = ?", caseID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
		}
		return nil, fmt.Errorf("lock case: %w", err)
	}
	return &c, nil
}

// MarkAssigned records an assignment round on the case.
func (r *Repository) MarkAssigned(tx *gorm.DB, c *models.Case, now time.Time) error {
	updates := map[string]any{
		"status":              string(c.Status),
		"last_assigned_at":    now,
		"assignment_attempts": gorm.Expr("assignment_attempts + 1"),
	}
	if c.FirstAssignedAt == nil {
		updates["first_assigned_at"] = now
	}
	return tx.Model(&models.Case{}).Where("id = ?", c.ID).Updates(updates).Error
}

// UpdateStatus transitions the case status.
func (r *Repository) UpdateStatus(tx *gorm.DB, caseID uuid.UUID, status enums.CaseStatus) error {
	return tx.Model(&models.Case{}).Where("id = ?", caseID).Update("status", status.String()).Error
}

// IncrementRejectionCount bumps the case's rejection counter.
func (r *Repository) IncrementRejectionCount(tx *gorm.DB, caseID uuid.UUID) error {
	return tx.Model(&models.Case{}).Where("id = ?", caseID).
		Update("rejection_count", gorm.Expr("rejection_count + 1")).Error
}

// EntitlementFor returns the patient's entitlement row, or nil when the
// billing service has never seen the patient.
func (r *Repository) EntitlementFor(ctx context.Context, patientID uuid.UUID) (*models.PatientEntitlement, error) {
	var ent models.PatientEntitlement
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query entitlement: %w", err)
	}
	return &ent, nil
}
