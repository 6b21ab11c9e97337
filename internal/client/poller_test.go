package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRefetchesOnInterval(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(nil)
	cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return nil, nil
	})

	p := NewPoller(cache, 20*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return fetches.Load() >= 2 },
		2*time.Second, 5*time.Millisecond, "the poll keeps running independent of push events")
}

func TestPollerStopHaltsLoop(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(nil)
	cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return nil, nil
	})

	p := NewPoller(cache, 10*time.Millisecond)
	p.Start(context.Background())
	require.Eventually(t, func() bool { return fetches.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop() // second stop is a no-op
	after := fetches.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, fetches.Load(), after+1, "at most one in-flight tick after stop")
}

func TestPollerRestartsAfterStop(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(nil)
	cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return nil, nil
	})

	p := NewPoller(cache, 10*time.Millisecond)
	p.Start(context.Background())
	require.Eventually(t, func() bool { return fetches.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	p.Stop()

	resumed := fetches.Load()
	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool { return fetches.Load() >= resumed+2 },
		2*time.Second, 5*time.Millisecond, "a stopped poller resumes on the next start")
}

func TestPollerStartTwiceRunsOneLoop(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(nil)
	cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) {
		fetches.Add(1)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPoller(cache, 50*time.Millisecond)
	p.Start(ctx)
	p.Start(ctx)
	defer p.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.LessOrEqual(t, fetches.Load(), int32(3), "double start must not double the rate")
}
