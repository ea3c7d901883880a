package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the fan-out hub.
type Metrics struct {
	Subscribers prometheus.Gauge

	// Published events by type
	Published *prometheus.CounterVec

	// Frames enqueued to subscribers, by topic kind
	Delivered *prometheus.CounterVec

	// Frames discarded under the drop_oldest policy
	Dropped prometheus.Counter

	// Forced disconnects by reason: overflow, stopped
	Disconnects *prometheus.CounterVec

	MirrorFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "election_fanout_subscribers",
			Help: "Connected subscribers",
		}),
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_fanout_published_total",
			Help: "Events published to the hub by type",
		}, []string{"type"}),
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_fanout_frames_enqueued_total",
			Help: "Frames enqueued to subscriber queues by topic kind",
		}, []string{"topic"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "election_fanout_frames_dropped_total",
			Help: "Frames dropped from full subscriber queues",
		}),
		Disconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "election_fanout_forced_disconnects_total",
			Help: "Subscribers closed by the hub by reason",
		}, []string{"reason"}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "election_fanout_mirror_failures_total",
			Help: "Events the external mirror could not accept",
		}),
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}

func (m *Metrics) IncPublished(eventType string) {
	if m != nil {
		m.Published.WithLabelValues(eventType).Inc()
	}
}

// IncDelivered takes the topic kind (election, live, incidents) to keep label
// cardinality bounded.
func (m *Metrics) IncDelivered(topicKind string) {
	if m != nil {
		m.Delivered.WithLabelValues(topicKind).Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncDisconnect(reason string) {
	if m != nil {
		m.Disconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncMirrorFailure() {
	if m != nil {
		m.MirrorFailures.Inc()
	}
}
