package assignments

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentEventPayload is emitted on every assignment lifecycle transition.
// Consumers outside the engine (notifications, audit) key off EventType on
// the envelope; the payload shape is shared across all four transitions.
type AssignmentEventPayload struct {
	AssignmentID    uuid.UUID  `json:"assignment_id"`
	CaseID          uuid.UUID  `json:"case_id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	MatchScore      float64    `json:"match_score"`
	AssignedAt      time.Time  `json:"assigned_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// CaseEventPayload is emitted when a matching round changes case-level state.
type CaseEventPayload struct {
	CaseID      uuid.UUID   `json:"case_id"`
	Status      string      `json:"status"`
	Attempt     int         `json:"attempt"`
	ProviderIDs []uuid.UUID `json:"provider_ids"`
}
