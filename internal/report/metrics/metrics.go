package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for report submission and verification.
type Metrics struct {
	Submitted *prometheus.CounterVec

	// Transitions by kind and new status
	Transitions *prometheus.CounterVec

	// Rejected transitions by reason: forbidden, invalid_status, not_found
	Rejected *prometheus.CounterVec

	Responded prometheus.Counter

	TransitionLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_reports_submitted_total",
			Help: "Reports submitted by kind",
		}, []string{"kind"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_reports_transitions_total",
			Help: "Verification transitions by kind and new status",
		}, []string{"kind", "status"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_reports_transitions_rejected_total",
			Help: "Verification attempts rejected before any write",
		}, []string{"reason"}),
		Responded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "election_reports_incidents_responded_total",
			Help: "Incidents marked as responded to",
		}),
		TransitionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "election_reports_transition_duration_seconds",
			Help:    "Time to lock, persist and publish a transition",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncSubmitted(kind string) {
	if m != nil {
		m.Submitted.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncTransition(kind, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncResponded() {
	if m != nil {
		m.Responded.Inc()
	}
}

func (m *Metrics) ObserveTransition(start time.Time) {
	if m != nil {
		m.TransitionLatency.Observe(time.Since(start).Seconds())
	}
}
