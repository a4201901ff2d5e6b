package matching

import (
	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
)

// FilterOptions control the eligibility passes.
type FilterOptions struct {
	// EmergencyOverrideEnabled allows a second pass that ignores capacity
	// caps for critical/high urgency cases when the strict pass is empty.
	EmergencyOverrideEnabled bool
}

// Filter reduces the provider universe to those structurally able to take the
// case. alreadyAssigned holds providers with a live (pending or accepted)
// assignment on this case; they are never eligible again while that holds.
func Filter(c models.Case, snapshots []models.ProviderCapacity, alreadyAssigned map[uuid.UUID]bool, opts FilterOptions) []models.ProviderCapacity {
	eligible := filterPass(c, snapshots, alreadyAssigned, false)
	if len(eligible) > 0 {
		return eligible
	}
	if opts.EmergencyOverrideEnabled && c.Urgency.IsUrgent() {
		return filterPass(c, snapshots, alreadyAssigned, true)
	}
	return eligible
}

func filterPass(c models.Case, snapshots []models.ProviderCapacity, alreadyAssigned map[uuid.UUID]bool, relaxCapacity bool) []models.ProviderCapacity {
	var eligible []models.ProviderCapacity
	for _, snap := range snapshots {
		if !snap.Available {
			continue
		}
		if alreadyAssigned[snap.ProviderID] {
			continue
		}
		if !specializationMatches(c, snap) {
			continue
		}
		if !relaxCapacity && !snap.EmergencyMode && !snap.HasCapacity() {
			continue
		}
		if !snap.MaxComplexity.AtLeast(c.Complexity) {
			continue
		}
		if c.Urgency.IsUrgent() && !snap.AcceptsUrgent {
			continue
		}
		eligible = append(eligible, snap)
	}
	return eligible
}

func specializationMatches(c models.Case, snap models.ProviderCapacity) bool {
	if snap.PrimarySpecialization == c.RequiredSpecialization {
		return true
	}
	for _, sub := range snap.SubSpecializations {
		if sub == c.RequiredSpecialization {
			return true
		}
	}
	return false
}
