// Package sequence hands out per-day document numbers such as
// PO-20260115-0003 from an atomic counter.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	ScopePool            = "GB"
	ScopeAggregatedOrder = "PO"
	ScopeDeliveryRun     = "DR"

	dayLayout  = "20060102"
	counterTTL = 48 * time.Hour
)

// Sequencer returns the next value of the (scope, day) counter. tx is the
// caller's transaction; implementations that do not use the database ignore it.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB, scope string, day time.Time) (int64, error)
}

// Format renders PREFIX-YYYYMMDD-NNNN.
func Format(prefix string, day time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.UTC().Format(dayLayout), n)
}

// Allocate draws the next number for scope and formats it.
func Allocate(ctx context.Context, seq Sequencer, tx *gorm.DB, scope string, now time.Time) (string, error) {
	if seq == nil {
		return "", errors.New("sequencer required")
	}
	n, err := seq.Next(ctx, tx, scope, now)
	if err != nil {
		return "", fmt.Errorf("allocate %s number: %w", scope, err)
	}
	return Format(scope, now, n), nil
}

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

// RedisSequencer uses INCR on gb:counter:<scope>:<yyyymmdd>.
type RedisSequencer struct {
	store counterStore
}

func NewRedisSequencer(store counterStore) (*RedisSequencer, error) {
	if store == nil {
		return nil, errors.New("redis store required for sequencer")
	}
	return &RedisSequencer{store: store}, nil
}

func (s *RedisSequencer) Next(ctx context.Context, _ *gorm.DB, scope string, day time.Time) (int64, error) {
	key := s.store.CounterKey(scope + ":" + day.UTC().Format(dayLayout))
	return s.store.IncrWithTTL(ctx, key, counterTTL)
}

const upsertCounterSQL = `INSERT INTO sequence_counters (scope, day, value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (scope, day) DO UPDATE SET value = sequence_counters.value + 1, updated_at = excluded.updated_at
RETURNING value`

// DBSequencer keeps counters in sequence_counters. The upsert row-locks the
// counter for the rest of the caller's transaction.
type DBSequencer struct {
	db *gorm.DB
}

func NewDBSequencer(db *gorm.DB) (*DBSequencer, error) {
	if db == nil {
		return nil, errors.New("db required for sequencer")
	}
	return &DBSequencer{db: db}, nil
}

func (s *DBSequencer) Next(ctx context.Context, tx *gorm.DB, scope string, day time.Time) (int64, error) {
	conn := s.db
	if tx != nil {
		conn = tx
	}
	var value int64
	err := conn.WithContext(ctx).
		Raw(upsertCounterSQL, scope, day.UTC().Format(dayLayout), time.Now().UTC()).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("sequence %s returned no value", scope)
	}
	return value, nil
}
