package matching

import (
	"context"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
)

// SpecializationCatalog resolves which specializations can treat a disease
// code. Implemented by the catalog collaborator; the engine only reads it.
type SpecializationCatalog interface {
	SpecializationsForDisease(ctx context.Context, code string) ([]string, error)
}

// Subscores is the per-factor breakdown behind a composite score. Kept for
// diagnostics; never persisted.
type Subscores struct {
	Specialization float64
	Workload       float64
	Disease        float64
	Symptom        float64
	Experience     float64
	Performance    float64
	Preference     float64

	WorkloadPenalty float64
	UrgencyBoost    float64
}

// Candidate pairs a provider snapshot with its composite score for one
// matching run.
type Candidate struct {
	Snapshot  models.ProviderCapacity
	Score     float64
	Subscores Subscores
	Priority  enums.AssignmentPriority
	Reason    string
}

// WorkloadPercent is a convenience passthrough used by selection ordering.
func (c Candidate) WorkloadPercent() float64 {
	return c.Snapshot.WorkloadPercent()
}
