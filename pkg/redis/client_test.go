package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
)

func TestFixedWindowAllowArmsTTLOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}

	for i, wantAllowed := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "tenant:abc", 2, time.Second)
		require.NoError(t, err)
		require.Equal(t, wantAllowed, allowed, "hit %d", i+1)
		require.Equal(t, int64(i+1), count)
	}
	require.Equal(t, map[string]int64{"gb:rate_limit:tenant:abc": 1000}, fake.ttls)
}

func TestIncrWithTTLWithoutExpiry(t *testing.T) {
	fake := newFakeCommander()
	client := &Client{cmd: fake}

	n, err := client.IncrWithTTL(context.Background(), client.CounterKey("PO:20260101"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Empty(t, fake.ttls)
}

func TestReleaseIfOwnerChecksToken(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommander()}
	key := client.LockKey("pool:abc")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, released)

	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, released)

	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestKeysAreNamespaced(t *testing.T) {
	client := &Client{}
	require.Equal(t, "gb:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "gb:rate_limit:scope", client.RateLimitKey(" scope "))
	require.Equal(t, "gb:counter:PO:20260101", client.CounterKey("PO:20260101"))
	require.Equal(t, "gb:lock", client.LockKey(""))
}

func TestZeroClientReportsNotConnected(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotConnected)
	_, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, errNotConnected)
	require.NoError(t, client.Close())
}

func TestBuildOptions(t *testing.T) {
	_, err := buildOptions(config.RedisConfig{})
	require.Error(t, err)

	opts, err := buildOptions(config.RedisConfig{URL: "redis://localhost:6380/3", PoolSize: 7, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = buildOptions(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}

// fakeCommander understands the two scripts the client evaluates.
type fakeCommander struct {
	data map[string]string
	hits map[string]int64
	ttls map[string]int64
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		data: map[string]string{},
		hits: map[string]int64{},
		ttls: map[string]int64{},
	}
}

func (f *fakeCommander) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommander) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommander) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected eval arity"))
	}
	key := keys[0]
	switch script {
	case incrExpireScript:
		f.hits[key]++
		if ttl := args[0].(int64); f.hits[key] == 1 && ttl > 0 {
			f.ttls[key] = ttl
		}
		return redis.NewCmdResult(f.hits[key], nil)
	case releaseScript:
		if f.data[key] != fmt.Sprint(args[0]) {
			return redis.NewCmdResult(int64(0), nil)
		}
		delete(f.data, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script"))
}
