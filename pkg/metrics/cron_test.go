package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.Observe("pool-expiry", 40*time.Millisecond, nil)
	m.Observe("pool-expiry", 10*time.Millisecond, errors.New("db gone"))
	m.Observe("", time.Millisecond, nil)
	m.AddRows("pool-expiry", 4)
	m.AddRows("pool-expiry", -2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success := findMetric(mfs, "groupbuy_cron_job_runs_total", map[string]string{"job": "pool-expiry", "outcome": "success"})
	require.NotNil(t, success)
	require.Equal(t, 1.0, success.GetCounter().GetValue())

	failure := findMetric(mfs, "groupbuy_cron_job_runs_total", map[string]string{"job": "pool-expiry", "outcome": "failure"})
	require.NotNil(t, failure)
	require.Equal(t, 1.0, failure.GetCounter().GetValue())

	require.NotNil(t, findMetric(mfs, "groupbuy_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": "success"}))

	rows := findMetric(mfs, "groupbuy_cron_job_rows_total", map[string]string{"job": "pool-expiry"})
	require.NotNil(t, rows)
	require.Equal(t, 4.0, rows.GetCounter().GetValue())

	took := findMetric(mfs, "groupbuy_cron_job_duration_seconds", map[string]string{"job": "pool-expiry"})
	require.NotNil(t, took)
	require.Equal(t, uint64(2), took.GetHistogram().GetSampleCount())

	last := findMetric(mfs, "groupbuy_cron_job_last_success_timestamp_seconds", map[string]string{"job": "pool-expiry"})
	require.NotNil(t, last)
	require.Greater(t, last.GetGauge().GetValue(), 0.0)
}

func TestCronJobMetricsNilIsInert(t *testing.T) {
	var m *CronJobMetrics
	require.Nil(t, NewCronJobMetrics(nil))
	require.NotPanics(t, func() {
		m.Observe("pool-expiry", time.Second, nil)
		m.AddRows("pool-expiry", 3)
	})
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric := findMetric(mfs, name, map[string]string{label: value})
	if metric == nil {
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return metric.GetCounter().GetValue(), nil
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// findMetric returns the first series of name carrying every label in want.
func findMetric(mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil
	}
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return metric
		}
	}
	return nil
}
