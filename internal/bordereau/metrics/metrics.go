package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the bordereau lifecycle engine.
type Metrics struct {
	// Transition outcomes by event and resulting status (or "rejected").
	TransitionOutcome *prometheus.CounterVec

	// Transition latency including persistence.
	TransitionLatency prometheus.Histogram

	// Revision request settlements by outcome.
	RevisionOutcome *prometheus.CounterVec

	// Reindex notifications enqueued or dropped.
	IndexNotifications *prometheus.CounterVec
}

// New creates a Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wastetrack_transitions_total",
			Help: "Status transition outcomes by event and resulting status",
		}, []string{"event", "status"}),

		TransitionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wastetrack_transition_duration_seconds",
			Help:    "Duration of a full status transition including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		RevisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wastetrack_revision_settlements_total",
			Help: "Revision request settlements by outcome",
		}, []string{"outcome"}),

		IndexNotifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wastetrack_index_notifications_total",
			Help: "Reindex notifications by result",
		}, []string{"result"}),
	}
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(event, status string, d time.Duration) {
	if m != nil {
		m.TransitionOutcome.WithLabelValues(event, status).Inc()
		m.TransitionLatency.Observe(d.Seconds())
	}
}

// IncrementRevision records a revision settlement outcome.
func (m *Metrics) IncrementRevision(outcome string) {
	if m != nil {
		m.RevisionOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementIndexNotification records a reindex enqueue result.
func (m *Metrics) IncrementIndexNotification(result string) {
	if m != nil {
		m.IndexNotifications.WithLabelValues(result).Inc()
	}
}
