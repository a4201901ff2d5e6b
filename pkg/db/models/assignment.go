package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/enums"
)

// Assignment links a provider to a case with a lifecycle status. Terminal
// rows are never deleted; they remain as assignment history. At most one
// non-terminal (pending or accepted) row may exist per (case, provider) pair,
// enforced by a partial unique index.
type Assignment struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CaseID          uuid.UUID                `gorm:"column:case_id;type:uuid;not null;index"`
	ProviderID      uuid.UUID                `gorm:"column:provider_id;type:uuid;not null;index"`
	Status          enums.AssignmentStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Priority        enums.AssignmentPriority `gorm:"column:priority;type:text;not null"`
	AssignedAt      time.Time                `gorm:"column:assigned_at;not null"`
	ExpiresAt       time.Time                `gorm:"column:expires_at;not null;index"`
	RespondedAt     *time.Time               `gorm:"column:responded_at"`
	Reason          string                   `gorm:"column:reason"`
	MatchScore      float64                  `gorm:"column:match_score;not null;default:0"`
	RejectionReason *string                  `gorm:"column:rejection_reason"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Assignment) TableName() string { return "assignments" }
