package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/enums"
)

// ProviderCapacity is the point-in-time availability read model maintained by
// the provider service. The matching engine reads these rows and never writes
// them; workload recomputes are requested through the capacity trigger.
type ProviderCapacity struct {
	ProviderID            uuid.UUID        `gorm:"column:provider_id;type:uuid;primaryKey"`
	PrimarySpecialization string           `gorm:"column:primary_specialization;not null"`
	SubSpecializations    []string         `gorm:"column:sub_specializations;type:jsonb;serializer:json"`
	Available             bool             `gorm:"column:available;not null;default:false"`
	EmergencyMode         bool             `gorm:"column:emergency_mode;not null;default:false"`
	ActiveCases           int              `gorm:"column:active_cases;not null;default:0"`
	MaxActiveCases        int              `gorm:"column:max_active_cases;not null;default:10"`
	TodayAppointments     int              `gorm:"column:today_appointments;not null;default:0"`
	MaxDailyAppointments  int              `gorm:"column:max_daily_appointments;not null;default:20"`
	ConsultationCount     int              `gorm:"column:consultation_count;not null;default:0"`
	AverageRating         *float64         `gorm:"column:average_rating"`
	CompletionRate        *float64         `gorm:"column:completion_rate"`
	YearsExperience       int              `gorm:"column:years_experience;not null;default:0"`
	MaxComplexity         enums.Complexity `gorm:"column:max_complexity;type:text;not null;default:'medium'"`
	AcceptsUrgent         bool             `gorm:"column:accepts_urgent;not null;default:true"`
	RefreshedAt           time.Time        `gorm:"column:refreshed_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (ProviderCapacity) TableName() string { return "provider_capacity" }

// WorkloadPercent is the provider's utilization ratio expressed as 0..100.
// A zero max counts as fully loaded so misconfigured rows never win selection.
func (p ProviderCapacity) WorkloadPercent() float64 {
	if p.MaxActiveCases <= 0 {
		return 100
	}
	return float64(p.ActiveCases) / float64(p.MaxActiveCases) * 100
}

// CaseCapacityRatio is active cases over the configured maximum.
func (p ProviderCapacity) CaseCapacityRatio() float64 {
	if p.MaxActiveCases <= 0 {
		return 1
	}
	return float64(p.ActiveCases) / float64(p.MaxActiveCases)
}

// AppointmentCapacityRatio is today's appointments over the daily maximum.
func (p ProviderCapacity) AppointmentCapacityRatio() float64 {
	if p.MaxDailyAppointments <= 0 {
		return 1
	}
	return float64(p.TodayAppointments) / float64(p.MaxDailyAppointments)
}

// HasCapacity reports whether the provider is under both the active-case and
// daily-appointment limits.
func (p ProviderCapacity) HasCapacity() bool {
	return p.ActiveCases < p.MaxActiveCases && p.TodayAppointments < p.MaxDailyAppointments
}
