package capacity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
)

// Reader exposes the provider capacity read surface the engine consumes.
// Snapshots are point-in-time and eventually consistent; the provider service
// recomputes them asynchronously after each trigger.
type Reader interface {
	SnapshotsBySpecialization(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error)
	EmergencySnapshots(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error)
	Snapshot(ctx context.Context, providerID uuid.UUID) (*models.ProviderCapacity, error)
}

// Repository reads the capacity table maintained by the provider service.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the reader to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SnapshotsBySpecialization returns available providers matching the
// specialization either as their primary or one of their sub-specializations.
func (r *Repository) SnapshotsBySpecialization(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error) {
	var rows []models.ProviderCapacity
	query := r.db.WithContext(ctx).
		Where("available = ?", true).
		Where(
			r.db.Where("primary_specialization = ?", specialization).
				Or("CAST(sub_specializations AS TEXT) LIKE ?", fmt.Sprintf("%%%q%%", specialization)),
		).
		Order("active_cases ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query capacity snapshots: %w", err)
	}
	return rows, nil
}

// EmergencySnapshots returns emergency-mode providers for the specialization.
func (r *Repository) EmergencySnapshots(ctx context.Context, specialization string, limit int) ([]models.ProviderCapacity, error) {
	var rows []models.ProviderCapacity
	query := r.db.WithContext(ctx).
		Where("available = ? AND emergency_mode = ?", true, true).
		Where("primary_specialization = ?", specialization).
		Order("active_cases ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query emergency snapshots: %w", err)
	}
	return rows, nil
}

// Snapshot returns the capacity row for a single provider.
func (r *Repository) Snapshot(ctx context.Context, providerID uuid.UUID) (*models.ProviderCapacity, error) {
	var row models.ProviderCapacity
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "provider capacity snapshot not found")
		}
		return nil, fmt.Errorf("query capacity snapshot: %w", err)
	}
	return &row, nil
}
