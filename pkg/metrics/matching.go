package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchingMetrics records matching-run outcomes and assignment state counts.
type MatchingMetrics struct {
	runDuration *prometheus.HistogramVec
	candidates  prometheus.Histogram
	noEligible  prometheus.Counter
	assignments *prometheus.GaugeVec
}

// NewMatchingMetrics registers the matching engine metrics on the provided registerer.
func NewMatchingMetrics(reg prometheus.Registerer) *MatchingMetrics {
	if reg == nil {
		return &MatchingMetrics{}
	}
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matching_run_duration_seconds",
		Help:    "Duration of a full eligibility/scoring/selection run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_scored_candidates",
		Help:    "Number of candidates surviving the score threshold per run.",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
	})
	noEligible := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_no_eligible_providers_total",
		Help: "Matching runs that ended with no eligible providers.",
	})
	assignments := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assignments_by_status",
		Help: "Current assignment counts by lifecycle status.",
	}, []string{"status"})
	reg.MustRegister(runDuration, candidates, noEligible, assignments)
	return &MatchingMetrics{
		runDuration: runDuration,
		candidates:  candidates,
		noEligible:  noEligible,
		assignments: assignments,
	}
}

// ObserveRun records one matching run.
func (m *MatchingMetrics) ObserveRun(trigger string, duration time.Duration, scored int) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	m.candidates.Observe(float64(scored))
}

// IncNoEligible counts a run that found no eligible providers.
func (m *MatchingMetrics) IncNoEligible() {
	if m == nil || m.noEligible == nil {
		return
	}
	m.noEligible.Inc()
}

// SetAssignmentCount publishes the current count for a lifecycle status.
func (m *MatchingMetrics) SetAssignmentCount(status string, count int64) {
	if m == nil || m.assignments == nil {
		return
	}
	m.assignments.WithLabelValues(status).Set(float64(count))
}
