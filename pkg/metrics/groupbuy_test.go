package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetrics(reg)
	m.IncJoin("accepted")
	m.IncJoin("accepted")
	m.IncJoin("capacity_exceeded")
	m.IncConfirmation("")
	m.IncExpired()
	m.ObserveLockWait(10 * time.Millisecond)
	m.IncStop("completed")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "groupbuy_pool_joins_total", "outcome", "accepted")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "groupbuy_pool_confirmations_total", "outcome", "unknown")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "groupbuy_delivery_stops_total", "status", "completed")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	expired := findMetricFamily(mfs, "groupbuy_pools_expired_total")
	require.NotNil(t, expired)
	assert.Equal(t, float64(1), expired.GetMetric()[0].GetCounter().GetValue())
}

func TestPoolMetricsNilSafe(t *testing.T) {
	var m *PoolMetrics
	m.IncJoin("accepted")
	m.IncExpired()
	NewPoolMetrics(nil).ObserveLockWait(time.Second)
}
