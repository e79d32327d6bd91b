package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "pool-1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexDifferentKeysDoNotContend(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := m.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, m.size())
}

type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	released []string
	failSet  error
	// hangSet makes SetNX block until its context ends
	hangSet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.hangSet {
		<-ctx.Done()
		return false, fmt.Errorf("dial tcp: %w", ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return false, f.failSet
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) ReleaseIfOwner(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[key] != token {
		return false, nil
	}
	delete(f.values, key)
	f.released = append(f.released, key)
	return true, nil
}

func (f *fakeStore) LockKey(name string) string {
	return "gb:lock:" + name
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	locker, err := NewRedisLocker(store, time.Second, 50*time.Millisecond, nil)
	require.NoError(t, err)

	unlock, err := locker.Lock(context.Background(), "pool:1")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "pool:1")
	require.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.Equal(t, []string{"gb:lock:pool:1"}, store.released)

	unlock, err = locker.Lock(context.Background(), "pool:1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLockerPropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.failSet = errors.New("connection refused")
	locker, err := NewRedisLocker(store, time.Second, 0, nil)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "pool:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedisLockerWaitBudgetExpiringInsideStoreCall(t *testing.T) {
	store := newFakeStore()
	store.hangSet = true
	locker, err := NewRedisLocker(store, time.Second, 30*time.Millisecond, nil)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "pool:1")
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockerCallerCancelInsideStoreCall(t *testing.T) {
	store := newFakeStore()
	store.hangSet = true
	locker, err := NewRedisLocker(store, time.Second, time.Minute, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "pool:1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestNewRedisLockerRequiresStore(t *testing.T) {
	_, err := NewRedisLocker(nil, time.Second, 0, nil)
	require.Error(t, err)
}

func TestChainReleasesInReverse(t *testing.T) {
	var order []string
	mk := func(name string) Locker {
		return lockerFunc(func(ctx context.Context, key string) (func(), error) {
			order = append(order, "lock:"+name)
			return func() { order = append(order, "unlock:"+name) }, nil
		})
	}
	chain := Chain{mk("local"), mk("redis")}
	unlock, err := chain.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, []string{"lock:local", "lock:redis", "unlock:redis", "unlock:local"}, order)
}

func TestChainUnwindsOnFailure(t *testing.T) {
	released := false
	first := lockerFunc(func(context.Context, string) (func(), error) {
		return func() { released = true }, nil
	})
	second := lockerFunc(func(context.Context, string) (func(), error) {
		return nil, errors.New("busy")
	})
	_, err := Chain{first, second}.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, released)
}

type lockerFunc func(ctx context.Context, key string) (func(), error)

func (f lockerFunc) Lock(ctx context.Context, key string) (func(), error) {
	return f(ctx, key)
}
