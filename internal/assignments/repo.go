package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlasmed/casematch-backend/pkg/db"
	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
	"github.com/atlasmed/casematch-backend/pkg/pagination"
)

// Repository persists assignment rows. Terminal rows are history and are
// never deleted here.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Create inserts a new assignment. A unique-violation on the partial index
// means the provider already holds a live assignment on the case.
func (r *Repository) Create(tx *gorm.DB, assignment *models.Assignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if err := tx.Create(assignment).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "provider already has a live assignment on this case")
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// GetByID loads a single assignment.
func (r *Repository) GetByID(tx *gorm.DB, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	err := tx.Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, fmt.Errorf("query assignment: %w", err)
	}
	return &a, nil
}

// UpdateStatus applies a lifecycle transition. respondedAt and
// rejectionReason may be nil depending on the transition.
func (r *Repository) UpdateStatus(tx *gorm.DB, id uuid.UUID, status enums.AssignmentStatus, respondedAt *time.Time, rejectionReason *string) error {
	updates := map[string]any{"status": status.String()}
	if respondedAt != nil {
		updates["responded_at"] = *respondedAt
	}
	if rejectionReason != nil {
		updates["rejection_reason"] = *rejectionReason
	}
	return tx.Model(&models.Assignment{}).Where("id = ?", id).Updates(updates).Error
}

// ActiveByCase returns the case's pending and accepted assignments.
func (r *Repository) ActiveByCase(tx *gorm.DB, caseID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := tx.
		Where("case_id = ? AND status IN ?", caseID, []string{
			enums.AssignmentStatusPending.String(),
			enums.AssignmentStatusAccepted.String(),
		}).
		Order("assigned_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query active assignments: %w", err)
	}
	return rows, nil
}

// ProviderIDsByCase returns the set of providers with any assignment row on
// the case, regardless of status. Used to keep rejected and expired providers
// out of replacement rounds.
func (r *Repository) ProviderIDsByCase(tx *gorm.DB, caseID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.Assignment{}).
		Where("case_id = ?", caseID).
		Distinct().
		Pluck("provider_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query assigned providers: %w", err)
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ListByCase returns the assignment history for a case, newest first. The
// cursor walks (created_at, id) so pages stay stable while new rounds land.
func (r *Repository) ListByCase(ctx context.Context, caseID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Assignment, error) {
	var rows []models.Assignment
	q := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at DESC").
		Order("id DESC")
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query case assignments: %w", err)
	}
	return rows, nil
}

// ListExpiredPending returns pending assignments whose deadline has passed,
// oldest deadline first.
func (r *Repository) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]models.Assignment, error) {
	var rows []models.Assignment
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.AssignmentStatusPending.String(), asOf).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query expired assignments: %w", err)
	}
	return rows, nil
}

// CountsByStatus groups live assignment totals per lifecycle status.
func (r *Repository) CountsByStatus(ctx context.Context) (map[enums.AssignmentStatus]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	counts := make(map[enums.AssignmentStatus]int64, len(rows))
	for _, r := range rows {
		counts[enums.AssignmentStatus(r.Status)] = r.Total
	}
	return counts, nil
}

// AcceptanceStats aggregates responsiveness numbers for the stats endpoint.
type AcceptanceStats struct {
	AverageMatchScore     float64
	AverageResponseSecond float64
}

// AcceptedStats computes averages over accepted assignments.
func (r *Repository) AcceptedStats(ctx context.Context) (AcceptanceStats, error) {
	type row struct {
		AvgScore    *float64
		AvgResponse *float64
	}
	var out row
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Select("AVG(match_score) AS avg_score, AVG(" + responseSecondsExpr(r.db) + ") AS avg_response").
		Where("status = ? AND responded_at IS NOT NULL", enums.AssignmentStatusAccepted.String()).
		Scan(&out).Error
	if err != nil {
		return AcceptanceStats{}, fmt.Errorf("aggregate accepted assignments: %w", err)
	}
	stats := AcceptanceStats{}
	if out.AvgScore != nil {
		stats.AverageMatchScore = *out.AvgScore
	}
	if out.AvgResponse != nil {
		stats.AverageResponseSecond = *out.AvgResponse
	}
	return stats, nil
}

func responseSecondsExpr(gdb *gorm.DB) string {
	if gdb.Dialector.Name() == "sqlite" {
		return "(julianday(responded_at) - julianday(assigned_at)) * 86400"
	}
	return "EXTRACT(EPOCH FROM (responded_at - assigned_at))"
}
