package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const (
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 20 * time.Millisecond
)

// ErrNotAcquired is returned when the wait budget runs out.
var ErrNotAcquired = errors.New("lock not acquired")

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, token string) (bool, error)
	LockKey(name string) string
}

// RedisLocker implements Locker with SETNX plus an owner token.
type RedisLocker struct {
	store        redisStore
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
	logg         *logger.Logger
}

// NewRedisLocker builds a RedisLocker. wait bounds how long Lock polls before
// giving up; zero means until ctx is done.
func NewRedisLocker(store redisStore, ttl, wait time.Duration, logg *logger.Logger) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for locker")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		store:        store,
		ttl:          ttl,
		wait:         wait,
		pollInterval: defaultPollInterval,
		logg:         logg,
	}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.store.LockKey(key)
	token := uuid.NewString()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.store.SetNX(waitCtx, redisKey, token, l.ttl)
		if err != nil {
			// the wait budget ran out mid-call
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}

	return func() {
		// the request context may already be cancelled here
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.store.ReleaseIfOwner(releaseCtx, redisKey, token); err != nil && l.logg != nil {
			l.logg.Warn(l.logg.WithField(ctx, "lock_key", redisKey), "failed to release redis lock")
		}
	}, nil
}
