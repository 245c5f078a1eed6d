package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxBatch is the per-batch tally the publisher reports.
type OutboxBatch struct {
	Published    int
	Retrying     int
	Deferred     int
	DeadLettered int
}

// OutboxMetrics tracks cmd/outbox-publisher.
type OutboxMetrics struct {
	events   *prometheus.CounterVec
	duration prometheus.Histogram
	backlog  prometheus.Gauge
}

// NewOutboxMetrics registers the publisher metrics on reg. A nil registerer
// yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox events settled by the publisher, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Time to claim, publish and settle one outbox batch.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_batch_size_last",
			Help: "Number of events claimed by the most recent batch.",
		}),
	}
	reg.MustRegister(m.events, m.duration, m.backlog)
	return m
}

func (m *OutboxMetrics) ObserveBatch(b OutboxBatch, elapsed time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues("published").Add(float64(b.Published))
	m.events.WithLabelValues("retrying").Add(float64(b.Retrying))
	m.events.WithLabelValues("deferred").Add(float64(b.Deferred))
	m.events.WithLabelValues("dead_lettered").Add(float64(b.DeadLettered))
	m.duration.Observe(elapsed.Seconds())
	m.backlog.Set(float64(b.Published + b.Retrying + b.Deferred + b.DeadLettered))
}
