package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const poolExpiryJobName = "pool-expiry"

// poolExpirer closes joinable pools whose deadline passed below the minimum.
type poolExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type PoolExpiryJobParams struct {
	Logger  *logger.Logger
	Pools   poolExpirer
	Metrics *metrics.CronJobMetrics
}

// NewPoolExpiryJob builds the sweeper that expires pools nobody touched
// after their close date.
func NewPoolExpiryJob(params PoolExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pools == nil {
		return nil, fmt.Errorf("pool expirer required")
	}
	return &poolExpiryJob{
		logg:    params.Logger,
		pools:   params.Pools,
		metrics: params.Metrics,
	}, nil
}

type poolExpiryJob struct {
	logg    *logger.Logger
	pools   poolExpirer
	metrics *metrics.CronJobMetrics
}

func (j *poolExpiryJob) Name() string { return poolExpiryJobName }

// Run reports partial progress even when some pools fail to expire; the
// next cycle picks the failures up again.
func (j *poolExpiryJob) Run(ctx context.Context) error {
	expired, err := j.pools.ExpireDue(ctx)
	j.metrics.AddRows(poolExpiryJobName, int64(expired))
	logCtx := j.logg.WithField(ctx, "pools_expired", expired)
	if err != nil {
		return fmt.Errorf("pool expiry: %w", err)
	}
	j.logg.Info(logCtx, "pool expiry sweep complete")
	return nil
}
