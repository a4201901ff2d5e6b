package matching

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/logger"
)

const (
	// scoreConcurrency bounds the scoring fan-out per matching run.
	scoreConcurrency = 8

	lowWorkloadBoostCutoff = 60.0
	overloadFloor          = 0.3
)

// ScorerParams configure the scoring engine.
type ScorerParams struct {
	Weights                  Weights
	MinimumScoreThreshold    float64
	WorkloadPenaltyThreshold float64
	Catalog                  SpecializationCatalog
	Logger                   *logger.Logger
}

// Scorer computes composite 0..100 match scores for eligible providers.
type Scorer struct {
	weights          Weights
	minScore         float64
	penaltyThreshold float64
	catalog          SpecializationCatalog
	logg             *logger.Logger
}

// NewScorer builds a scoring engine, validating the weight table.
func NewScorer(params ScorerParams) (*Scorer, error) {
	if err := params.Weights.Validate(); err != nil {
		return nil, err
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("specialization catalog required")
	}
	minScore := params.MinimumScoreThreshold
	if minScore <= 0 {
		minScore = 35.0
	}
	penaltyThreshold := params.WorkloadPenaltyThreshold
	if penaltyThreshold <= 0 {
		penaltyThreshold = 80.0
	}
	return &Scorer{
		weights:          params.Weights,
		minScore:         minScore,
		penaltyThreshold: penaltyThreshold,
		catalog:          params.Catalog,
		logg:             params.Logger,
	}, nil
}

// MinimumScoreThreshold returns the configured score floor.
func (s *Scorer) MinimumScoreThreshold() float64 {
	return s.minScore
}

// Score computes the composite score for one provider. The second return is
// false when the candidate falls below the minimum threshold.
func (s *Scorer) Score(ctx context.Context, c models.Case, snap models.ProviderCapacity) (Candidate, bool) {
	sub := Subscores{
		Specialization: s.specializationScore(c, snap),
		Workload:       s.workloadScore(c, snap),
		Disease:        s.diseaseScore(ctx, c, snap),
		Symptom:        s.symptomScore(c, snap),
		Experience:     s.experienceScore(snap),
		Performance:    s.performanceScore(snap),
		Preference:     s.preferenceScore(c, snap),
	}

	total := sub.Specialization*s.weights.Specialization +
		sub.Workload*s.weights.Workload +
		sub.Disease*s.weights.Disease +
		sub.Symptom*s.weights.Symptom +
		sub.Experience*s.weights.Experience +
		sub.Performance*s.weights.Performance +
		sub.Preference*s.weights.Preference

	sub.WorkloadPenalty = s.workloadPenaltyFactor(snap)
	total *= sub.WorkloadPenalty

	sub.UrgencyBoost = s.urgencyBoostFactor(c, snap)
	total *= sub.UrgencyBoost

	total = clamp(total, 0, 100)

	candidate := Candidate{
		Snapshot:  snap,
		Score:     total,
		Subscores: sub,
		Reason: fmt.Sprintf("specialization %s, workload %.0f%%, score %.1f",
			snap.PrimarySpecialization, snap.WorkloadPercent(), total),
	}
	return candidate, total >= s.minScore
}

// ScoreAll scores every snapshot concurrently, ordered by score descending
// with workload as the tiebreaker. Sub-threshold candidates are kept:
// selection enforces the floor and may still use them for backfill.
func (s *Scorer) ScoreAll(ctx context.Context, c models.Case, snapshots []models.ProviderCapacity) []Candidate {
	results := make([]Candidate, len(snapshots))

	var wg sync.WaitGroup
	sem := make(chan struct{}, scoreConcurrency)
	for i, snap := range snapshots {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, snap models.ProviderCapacity) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], _ = s.Score(ctx, c, snap)
		}(i, snap)
	}
	wg.Wait()

	candidates := make([]Candidate, 0, len(snapshots))
	candidates = append(candidates, results...)
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].WorkloadPercent() < candidates[j].WorkloadPercent()
	})
}

func (s *Scorer) specializationScore(c models.Case, snap models.ProviderCapacity) float64 {
	var score float64
	switch {
	case snap.PrimarySpecialization == c.RequiredSpecialization:
		score = 80
	case contains(snap.SubSpecializations, c.RequiredSpecialization):
		score = 60
	}

	var overlap float64
	for _, secondary := range c.SecondarySpecializations {
		if contains(snap.SubSpecializations, secondary) || snap.PrimarySpecialization == secondary {
			overlap += 10
		}
	}
	if overlap > 20 {
		overlap = 20
	}
	return clamp(score+overlap, 0, 100)
}

func (s *Scorer) workloadScore(c models.Case, snap models.ProviderCapacity) float64 {
	if !snap.Available {
		return 0
	}
	score := 20.0

	load := snap.WorkloadPercent()
	switch {
	case load <= 30:
		score += 50
	case load <= 50:
		score += 40
	case load <= 70:
		score += 25
	case load <= 90:
		score += 10
	}

	switch ratio := snap.CaseCapacityRatio(); {
	case ratio <= 0.5:
		score += 20
	case ratio <= 0.7:
		score += 15
	case ratio <= 0.9:
		score += 5
	}

	switch ratio := snap.AppointmentCapacityRatio(); {
	case ratio <= 0.5:
		score += 10
	case ratio <= 0.8:
		score += 5
	}

	if c.Urgency.IsUrgent() && snap.EmergencyMode {
		score += 15
	}
	return clamp(score, 0, 100)
}

func (s *Scorer) diseaseScore(ctx context.Context, c models.Case, snap models.ProviderCapacity) float64 {
	const baseline = 40.0

	if c.PrimaryDiseaseCode != "" {
		specs, err := s.catalog.SpecializationsForDisease(ctx, c.PrimaryDiseaseCode)
		if err != nil {
			// Catalog outages degrade the factor to its baseline rather than
			// failing the whole run.
			if s.logg != nil {
				s.logg.Warn(s.logg.WithCaseID(ctx, c.ID.String()), "specialization catalog unavailable, using baseline disease score")
			}
			return baseline
		}
		if contains(specs, snap.PrimarySpecialization) {
			return 85
		}
		if overlaps(specs, snap.SubSpecializations) {
			return 70
		}
	}

	if c.SecondaryDiseaseCode != "" {
		specs, err := s.catalog.SpecializationsForDisease(ctx, c.SecondaryDiseaseCode)
		if err == nil && contains(specs, snap.PrimarySpecialization) {
			return 60
		}
	}
	return baseline
}

func (s *Scorer) symptomScore(c models.Case, snap models.ProviderCapacity) float64 {
	if len(c.SymptomCodes) == 0 {
		return 50
	}
	if snap.PrimarySpecialization == c.RequiredSpecialization {
		return 75
	}
	if overlaps(snap.SubSpecializations, c.SecondarySpecializations) {
		return 65
	}
	return 45
}

func (s *Scorer) experienceScore(snap models.ProviderCapacity) float64 {
	var score float64
	switch {
	case snap.ConsultationCount >= 1000:
		score = 40
	case snap.ConsultationCount >= 500:
		score = 30
	case snap.ConsultationCount >= 100:
		score = 20
	case snap.ConsultationCount >= 50:
		score = 15
	default:
		score = 10
	}

	switch {
	case snap.AverageRating == nil:
		score += 15
	case *snap.AverageRating >= 4.5:
		score += 30
	case *snap.AverageRating >= 4.0:
		score += 20
	case *snap.AverageRating >= 3.5:
		score += 10
	}
	return clamp(score, 0, 100)
}

func (s *Scorer) performanceScore(snap models.ProviderCapacity) float64 {
	score := 50.0
	if snap.AverageRating != nil {
		score = *snap.AverageRating * 20
	}
	if snap.ConsultationCount > 100 {
		score += 10
	}
	if snap.CompletionRate != nil {
		score += (*snap.CompletionRate - 80) * 0.5
	}
	return clamp(score, 0, 100)
}

func (s *Scorer) preferenceScore(c models.Case, snap models.ProviderCapacity) float64 {
	score := 50.0
	if c.Urgency.IsUrgent() && snap.EmergencyMode {
		score += 25
	}
	if snap.YearsExperience > 5 {
		score += 15
	}
	return clamp(score, 0, 100)
}

// workloadPenaltyFactor scales the excess over the threshold by the
// remaining headroom, so the factor runs from 1 at the threshold down to the
// floor as load approaches 100%. A provider deep into its headroom lands at
// the floor and falls out at any realistic raw score.
func (s *Scorer) workloadPenaltyFactor(snap models.ProviderCapacity) float64 {
	load := snap.WorkloadPercent()
	if load <= s.penaltyThreshold {
		return 1
	}
	headroom := 100 - s.penaltyThreshold
	if headroom <= 0 {
		return overloadFloor
	}
	factor := 1 - (load-s.penaltyThreshold)/headroom
	if factor < overloadFloor {
		factor = overloadFloor
	}
	return factor
}

func (s *Scorer) urgencyBoostFactor(c models.Case, snap models.ProviderCapacity) float64 {
	if !c.Urgency.IsUrgent() {
		return 1
	}
	if snap.EmergencyMode {
		return 1.2
	}
	if snap.WorkloadPercent() < lowWorkloadBoostCutoff {
		return 1.1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, item := range a {
		if contains(b, item) {
			return true
		}
	}
	return false
}
