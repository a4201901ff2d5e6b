package models

import (
	"time"

	"github.com/google/uuid"
)

// PatientEntitlement mirrors the billing service's view of whether a patient
// may have cases assigned. Read-only to the matching engine.
type PatientEntitlement struct {
	PatientID uuid.UUID  `gorm:"column:patient_id;type:uuid;primaryKey"`
	Active    bool       `gorm:"column:active;not null;default:false"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (PatientEntitlement) TableName() string { return "patient_entitlements" }

// ActiveAt reports whether the entitlement covers the given instant.
func (p PatientEntitlement) ActiveAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
