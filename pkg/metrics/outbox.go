package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the outbox publisher. A nil value records nothing.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Histogram
	lag     prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_outbox_events_total",
			Help: "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		batches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "groupbuy_outbox_batch_duration_seconds",
			Help:    "Time to publish and settle one outbox batch.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "groupbuy_outbox_publish_lag_seconds",
			Help:    "Delay between an outbox row being written and its publish ack.",
			Buckets: prometheus.ExponentialBuckets(.05, 2, 12),
		}),
	}
	reg.MustRegister(m.events, m.batches, m.lag)
	return m
}

func (m *OutboxMetrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) Batch(took time.Duration) {
	if m == nil {
		return
	}
	m.batches.Observe(took.Seconds())
}

func (m *OutboxMetrics) Lag(written time.Time) {
	if m == nil || written.IsZero() {
		return
	}
	m.lag.Observe(time.Since(written).Seconds())
}
