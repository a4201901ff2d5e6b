package matching

import (
	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
)

const overloadedWorkloadPercent = 80.0

// Select orders scored candidates and picks the team for the case: one
// PRIMARY, then SECONDARY/CONSULTANT slots up to the case maximum, honoring
// the overload diversity gate, then a backfill pass to reach the case
// minimum. minScoreThreshold is the scorer's configured floor; backfill
// accepts candidates down to 70% of it.
func Select(c models.Case, candidates []Candidate, minScoreThreshold float64) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sortCandidates(ordered)

	maxProviders := c.MaxProviders
	if maxProviders < 1 {
		maxProviders = 1
	}

	// The top scorer is the primary only if it clears the floor; when
	// nothing does, the case gets no team this round.
	if ordered[0].Score < minScoreThreshold {
		return nil
	}

	selected := make([]Candidate, 0, maxProviders)
	chosen := make(map[uuid.UUID]bool)

	primary := ordered[0]
	primary.Priority = enums.AssignmentPriorityPrimary
	selected = append(selected, primary)
	chosen[primary.Snapshot.ProviderID] = true

	for _, candidate := range ordered[1:] {
		if len(selected) >= maxProviders {
			break
		}
		if candidate.Score < minScoreThreshold {
			break
		}
		if !passesDiversityGate(selected, candidate) {
			continue
		}
		candidate.Priority = priorityForSlot(len(selected))
		selected = append(selected, candidate)
		chosen[candidate.Snapshot.ProviderID] = true
	}

	// Backfill ignores the diversity gate: meeting the case minimum beats
	// workload balance.
	if len(selected) < c.MinProviders {
		backfillFloor := minScoreThreshold * 0.7
		for _, candidate := range ordered {
			if len(selected) >= c.MinProviders {
				break
			}
			if chosen[candidate.Snapshot.ProviderID] {
				continue
			}
			if candidate.Score < backfillFloor {
				continue
			}
			candidate.Priority = enums.AssignmentPriorityConsultant
			selected = append(selected, candidate)
			chosen[candidate.Snapshot.ProviderID] = true
		}
	}

	return selected
}

// passesDiversityGate rejects stacking a second overloaded provider onto a
// team that already has one, once two providers are on board.
func passesDiversityGate(selected []Candidate, candidate Candidate) bool {
	if len(selected) < 2 {
		return true
	}
	if candidate.WorkloadPercent() <= overloadedWorkloadPercent {
		return true
	}
	for _, s := range selected {
		if s.WorkloadPercent() > overloadedWorkloadPercent {
			return false
		}
	}
	return true
}

func priorityForSlot(slot int) enums.AssignmentPriority {
	if slot == 1 {
		return enums.AssignmentPrioritySecondary
	}
	return enums.AssignmentPriorityConsultant
}
