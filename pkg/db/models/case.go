package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/enums"
)

// Case is a unit of work routed to one or more providers. Case records are
// owned by the case-management service; the matching engine only updates
// status, assignment timestamps, and the attempt/rejection counters.
type Case struct {
	ID                       uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	PatientID                uuid.UUID        `gorm:"column:patient_id;type:uuid;not null"`
	RequiredSpecialization   string           `gorm:"column:required_specialization;not null"`
	SecondarySpecializations []string         `gorm:"column:secondary_specializations;type:jsonb;serializer:json"`
	PrimaryDiseaseCode       string           `gorm:"column:primary_disease_code"`
	SecondaryDiseaseCode     string           `gorm:"column:secondary_disease_code"`
	SymptomCodes             []string         `gorm:"column:symptom_codes;type:jsonb;serializer:json"`
	Urgency                  enums.Urgency    `gorm:"column:urgency;type:text;not null"`
	Complexity               enums.Complexity `gorm:"column:complexity;type:text;not null;default:'medium'"`
	MinProviders             int              `gorm:"column:min_providers;not null;default:1"`
	MaxProviders             int              `gorm:"column:max_providers;not null;default:3"`
	Status                   enums.CaseStatus `gorm:"column:status;type:text;not null;default:'submitted'"`
	SubmittedAt              time.Time        `gorm:"column:submitted_at;not null"`
	FirstAssignedAt          *time.Time       `gorm:"column:first_assigned_at"`
	LastAssignedAt           *time.Time       `gorm:"column:last_assigned_at"`
	AssignmentAttempts       int              `gorm:"column:assignment_attempts;not null;default:0"`
	RejectionCount           int              `gorm:"column:rejection_count;not null;default:0"`
	CreatedAt                time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Case) TableName() string { return "cases" }
