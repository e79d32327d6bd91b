package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the pause between the end of one cycle and the next.
	Interval time.Duration
	// JobTimeout bounds a single job. Defaults to Interval.
	JobTimeout time.Duration
}

// Service runs the registered sweeps on a fixed cadence. A cycle only runs
// on the replica that wins the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// cycleResult summarizes one pass over the registry.
type cycleResult struct {
	skipped bool
	ran     int
	failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry, _ = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	return s, nil
}

// Run sweeps once right away, then once per interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "component", "cron")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"jobs": s.registry.Names(), "interval": s.interval.String()}), "cron service started")
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-timer.C:
		}
		res, err := s.runCycle(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "sweep cycle failed", err)
		case len(res.failed) > 0:
			s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", res.failed), "sweep cycle finished with failures")
		}
		timer.Reset(s.interval)
	}
}

func (s *Service) runCycle(ctx context.Context) (cycleResult, error) {
	var res cycleResult
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return res, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "sweep lock held elsewhere, skipping cycle")
		res.skipped = true
		return res, nil
	}
	// release even when shutdown cancelled ctx mid-cycle
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release sweep lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		res.ran++
		if err := s.runJob(ctx, job); err != nil {
			res.failed = append(res.failed, job.Name())
		}
	}
	return res, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(start)
	s.metrics.Observe(name, took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.logg.Info(ctx, "job completed")
	return nil
}
