package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for result reconciliation.
type Metrics struct {
	// Fetches by outcome: ok or a failure cause
	Fetches *prometheus.CounterVec

	FetchLatency prometheus.Histogram

	// Strategy attempts by strategy name and outcome: ok, empty, failed, skipped
	Strategies *prometheus.CounterVec

	// Results written by outcome: created, updated, unchanged
	Results *prometheus.CounterVec

	// Fetched tuples that could not be matched, by reason
	Skipped *prometheus.CounterVec

	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Fetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_sync_fetches_total",
			Help: "Outbound source requests by outcome",
		}, []string{"outcome"}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "election_sync_fetch_duration_seconds",
			Help:    "Time from request start to response headers",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Strategies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_sync_strategy_attempts_total",
			Help: "Fetch strategy attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_sync_results_total",
			Help: "Result upserts by outcome",
		}, []string{"outcome"}),
		Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_sync_skipped_total",
			Help: "Fetched tuples skipped by reason",
		}, []string{"reason"}),
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_sync_runs_total",
			Help: "Synchronizer runs by kind",
		}, []string{"kind"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "election_sync_run_duration_seconds",
			Help:    "Duration of a full synchronizer run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) IncFetch(outcome string) {
	if m != nil {
		m.Fetches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveFetch(start time.Time) {
	if m != nil {
		m.FetchLatency.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncStrategy(strategy, outcome string) {
	if m != nil {
		m.Strategies.WithLabelValues(strategy, outcome).Inc()
	}
}

func (m *Metrics) IncResult(outcome string) {
	if m != nil {
		m.Results.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncSkipped(reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveRun(kind string, start time.Time) {
	if m != nil {
		m.Runs.WithLabelValues(kind).Inc()
		m.RunDuration.Observe(time.Since(start).Seconds())
	}
}
