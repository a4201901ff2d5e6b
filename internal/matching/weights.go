package matching

import (
	"fmt"
	"math"
)

// Weights holds the relative weight of each scoring factor. The struct is
// immutable after construction; tests inject their own instance instead of
// mutating shared state.
type Weights struct {
	Specialization float64
	Workload       float64
	Disease        float64
	Symptom        float64
	Experience     float64
	Performance    float64
	Preference     float64
}

// DefaultWeights returns the production weight table. The values sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		Specialization: 0.30,
		Workload:       0.25,
		Disease:        0.20,
		Symptom:        0.10,
		Experience:     0.08,
		Performance:    0.05,
		Preference:     0.02,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Specialization + w.Workload + w.Disease + w.Symptom +
		w.Experience + w.Performance + w.Preference
}

// Validate rejects weight tables that do not sum to 1.0.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}
