package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const (
	outboxRetentionJobName = "outbox-retention"
	outboxRetention        = 30 * 24 * time.Hour
	outboxMinAttempts      = 10
	outboxPurgeBatch       = 500
)

type outboxPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time, minAttempts, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPurger
	Metrics    *metrics.CronJobMetrics
	// Retention is how long published rows are kept.
	Retention time.Duration
	// MinAttempts marks unpublished rows as dead-lettered and purgeable.
	MinAttempts int
	BatchSize   int
}

// NewOutboxRetentionJob builds the sweep that trims old outbox rows in
// batches so a backlog never holds one long delete.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("outbox retention: logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox retention: repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		metrics:     params.Metrics,
		retention:   params.Retention,
		minAttempts: params.MinAttempts,
		batch:       params.BatchSize,
		now:         time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetention
	}
	if job.minAttempts <= 0 {
		job.minAttempts = outboxMinAttempts
	}
	if job.batch <= 0 {
		job.batch = outboxPurgeBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxPurger
	metrics     *metrics.CronJobMetrics
	retention   time.Duration
	minAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	batches := 0
	for ctx.Err() == nil {
		n, err := j.repo.PurgeBefore(ctx, cutoff, j.minAttempts, j.batch)
		total += n
		j.metrics.AddRows(outboxRetentionJobName, n)
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		batches++
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"batches":      batches,
		"rows_deleted": total,
	}), "outbox retention sweep complete")
	return ctx.Err()
}
