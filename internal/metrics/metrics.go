package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for LayoutsTotal.
const (
	OutcomeScored   = "scored"
	OutcomeVetoed   = "vetoed"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors shared by the labeler and the API.
type Metrics struct {
	LayoutsTotal   *prometheus.CounterVec
	ScoreDuration  prometheus.Histogram
	BatchSize      prometheus.Histogram
	Aggregate      prometheus.Histogram
	PublishErrors  prometheus.Counter
	ExportedRows   prometheus.Counter
	RatingsApplied prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LayoutsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "layouts_total",
			Help:      "Layouts evaluated, by outcome.",
		}, []string{"outcome"}),
		ScoreDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "habitat",
			Name:      "score_duration_seconds",
			Help:      "Time to score one layout.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "habitat",
			Name:      "batch_size",
			Help:      "Documents per labeling batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Aggregate: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "habitat",
			Name:      "aggregate_score",
			Help:      "Weighted aggregate of non-vetoed layouts.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "publish_errors_total",
			Help:      "Event bus publish failures.",
		}),
		ExportedRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "exported_rows_total",
			Help:      "Dataset rows written by export.",
		}),
		RatingsApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "expert_ratings_total",
			Help:      "Expert ratings attached to stored rows.",
		}),
	}
}

// ObserveScore records one evaluation. A nil receiver is a no-op so callers may
// run without metrics.
func (m *Metrics) ObserveScore(outcome string, elapsed time.Duration, aggregate *float64) {
	if m == nil {
		return
	}
	m.LayoutsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeRejected {
		return
	}
	m.ScoreDuration.Observe(elapsed.Seconds())
	if aggregate != nil && outcome == OutcomeScored {
		m.Aggregate.Observe(*aggregate)
	}
}

func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.PublishErrors.Inc()
}

func (m *Metrics) RowsExported(n int) {
	if m == nil {
		return
	}
	m.ExportedRows.Add(float64(n))
}

func (m *Metrics) RatingApplied() {
	if m == nil {
		return
	}
	m.RatingsApplied.Inc()
}
