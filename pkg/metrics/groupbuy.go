package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics tracks pool lifecycle outcomes.
type PoolMetrics struct {
	joins         *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	expired       prometheus.Counter
	lockWait      prometheus.Histogram
	stops         *prometheus.CounterVec
}

// NewPoolMetrics registers the group-buy metrics on the provided registerer.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	if reg == nil {
		return &PoolMetrics{}
	}
	joins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbuy_pool_joins_total",
		Help: "Pool join attempts by outcome.",
	}, []string{"outcome"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbuy_pool_confirmations_total",
		Help: "Pool confirmation attempts by outcome.",
	}, []string{"outcome"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupbuy_pools_expired_total",
		Help: "Pools moved to expired.",
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupbuy_pool_lock_wait_seconds",
		Help:    "Time spent waiting for a per-pool lock.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	})
	stops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupbuy_delivery_stops_total",
		Help: "Delivery stop transitions by status.",
	}, []string{"status"})
	reg.MustRegister(joins, confirmations, expired, lockWait, stops)
	return &PoolMetrics{
		joins:         joins,
		confirmations: confirmations,
		expired:       expired,
		lockWait:      lockWait,
		stops:         stops,
	}
}

func (m *PoolMetrics) IncJoin(outcome string) {
	if m == nil || m.joins == nil {
		return
	}
	m.joins.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PoolMetrics) IncConfirmation(outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PoolMetrics) IncExpired() {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Inc()
}

func (m *PoolMetrics) ObserveLockWait(d time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *PoolMetrics) IncStop(status string) {
	if m == nil || m.stops == nil {
		return
	}
	m.stops.WithLabelValues(normalizeLabel(status)).Inc()
}
