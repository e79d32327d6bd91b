package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

type fakePurger struct {
	remaining int64
	err       error
	cutoffs   []time.Time
	limits    []int
	attempts  int
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time, minAttempts, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	f.attempts = minAttempts
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.remaining, int64(limit))
	f.remaining -= n
	return n, nil
}

func newRetentionJob(t *testing.T, repo outboxPurger, reg prometheus.Registerer, batch int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		Metrics:    metrics.NewCronJobMetrics(reg),
		BatchSize:  batch,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakePurger{remaining: 7}
	reg := prometheus.NewRegistry()
	job := newRetentionJob(t, repo, reg, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []int{3, 3, 3}, repo.limits)
	require.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), repo.cutoffs[0])
	require.Equal(t, outboxMinAttempts, repo.attempts)
	require.Equal(t, 7.0, rowsCounted(t, reg, outboxRetentionJobName))
}

func TestOutboxRetentionJobStopsOnExactBatchBoundary(t *testing.T) {
	repo := &fakePurger{remaining: 6}
	job := newRetentionJob(t, repo, nil, 3)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.limits, 3)
	require.Zero(t, repo.remaining)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job := newRetentionJob(t, &fakePurger{err: errors.New("boom")}, nil, 0)
	require.ErrorContains(t, job.Run(context.Background()), "boom")
	require.Equal(t, outboxPurgeBatch, job.batch)
}

func TestOutboxRetentionJobRequiresRepository(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard})})
	require.Error(t, err)
}
