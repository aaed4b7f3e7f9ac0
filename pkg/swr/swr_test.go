package swr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingFetcher returns successive integers and counts calls.
type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context) (int, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return int(n), nil
}

func setup(t *testing.T) (*Orchestrator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)}
	tiers := cache.NewTiers(cache.DefaultConfig(), cache.WithClock(clock.Now))
	return New(tiers, DefaultConfig(), zerolog.Nop()), clock
}

func TestResolve_FreshnessWindows(t *testing.T) {
	policy := Policy{Tier: cache.TierHot, TTL: 30 * time.Second, SWRTTL: 30 * time.Second}
	ctx := context.Background()

	t.Run("inside ttl is fresh", func(t *testing.T) {
		o, clock := setup(t)
		o.tiers.Hot.Set("nse:gainers", 100, policy.TTL)
		f := &countingFetcher{}

		clock.Advance(10 * time.Second)
		res, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
		require.NoError(t, err)

		assert.False(t, res.Stale)
		assert.Equal(t, 100, res.Data)
		o.Wait()
		assert.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("inside grace is stale with one background fetch", func(t *testing.T) {
		o, clock := setup(t)
		o.tiers.Hot.Set("nse:gainers", 100, policy.TTL)
		written := clock.Now()
		f := &countingFetcher{}

		clock.Advance(35 * time.Second)
		res, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
		require.NoError(t, err)

		assert.True(t, res.Stale)
		assert.Equal(t, 100, res.Data)
		assert.Equal(t, written, res.FetchedAt)

		o.Wait()
		assert.Equal(t, int32(1), f.calls.Load())

		v, ok := o.tiers.Hot.Get("nse:gainers")
		require.True(t, ok, "refresh should have stored a live value")
		assert.Equal(t, 1, v)
	})

	t.Run("past grace fetches synchronously", func(t *testing.T) {
		o, clock := setup(t)
		o.tiers.Hot.Set("nse:gainers", 100, policy.TTL)
		f := &countingFetcher{}

		clock.Advance(65 * time.Second)
		res, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
		require.NoError(t, err)

		assert.False(t, res.Stale)
		assert.Equal(t, 1, res.Data)
		assert.Equal(t, int32(1), f.calls.Load())
	})
}

func TestResolve_EndToEndScenario(t *testing.T) {
	o, clock := setup(t)
	ctx := context.Background()
	policy := Policy{Tier: cache.TierHot, TTL: 20 * time.Second, SWRTTL: 20 * time.Second}
	f := &countingFetcher{}

	// Cold cache: one upstream call.
	first, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
	require.NoError(t, err)
	assert.False(t, first.Stale)
	assert.Equal(t, int32(1), f.calls.Load())

	// +5s: served from cache.
	clock.Advance(5 * time.Second)
	second, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
	require.NoError(t, err)
	assert.False(t, second.Stale)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, int32(1), f.calls.Load())

	// +25s: stale, exactly one refresh scheduled.
	clock.Advance(20 * time.Second)
	third, err := Resolve(ctx, o, "nse:gainers", policy, f.Fetch)
	require.NoError(t, err)
	assert.True(t, third.Stale)
	assert.Equal(t, first.Data, third.Data)

	o.Wait()
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestResolve_SyncFailurePropagates(t *testing.T) {
	o, _ := setup(t)
	upstreamErr := errors.New("upstream down")
	f := &countingFetcher{err: upstreamErr}

	_, err := Resolve(context.Background(), o, "nse:most-active:volume",
		Policy{Tier: cache.TierHot, TTL: time.Second, SWRTTL: time.Second}, f.Fetch)

	require.Error(t, err)
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, 0, o.tiers.Hot.Len(), "failed fetch must not populate the cache")
}

func TestResolve_BackgroundFailureKeepsStale(t *testing.T) {
	o, clock := setup(t)
	policy := Policy{Tier: cache.TierNormal, TTL: 10 * time.Second, SWRTTL: time.Minute}
	o.tiers.Normal.Set("nse:deals:bulk", 7, policy.TTL)
	f := &countingFetcher{err: errors.New("timeout")}

	clock.Advance(15 * time.Second)
	res, err := Resolve(context.Background(), o, "nse:deals:bulk", policy, f.Fetch)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	o.Wait()

	// Next caller still gets the stale value and triggers another attempt.
	res, err = Resolve(context.Background(), o, "nse:deals:bulk", policy, f.Fetch)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 7, res.Data)
	o.Wait()
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestResolve_ConcurrentStaleReadsShareRefresh(t *testing.T) {
	o, clock := setup(t)
	policy := Policy{Tier: cache.TierHot, TTL: 10 * time.Second, SWRTTL: time.Minute}
	o.tiers.Hot.Set("nse:indices", 1, policy.TTL)
	clock.Advance(20 * time.Second)

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 2, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Resolve(context.Background(), o, "nse:indices", policy, fetch)
			assert.NoError(t, err)
			assert.True(t, res.Stale)
		}()
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	close(release)
	o.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_BackgroundPanicIsContained(t *testing.T) {
	o, clock := setup(t)
	policy := Policy{Tier: cache.TierHot, TTL: time.Second, SWRTTL: time.Minute}
	o.tiers.Hot.Set("nse:quote:SBIN", 1, policy.TTL)
	clock.Advance(2 * time.Second)

	res, err := Resolve(context.Background(), o, "nse:quote:SBIN", policy, func(ctx context.Context) (int, error) {
		panic("boom")
	})
	require.NoError(t, err)
	assert.True(t, res.Stale)

	o.Wait()
	v, err := o.tiers.Hot.Peek("nse:quote:SBIN")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Value)
}

func TestResolve_TypeMismatchRefetches(t *testing.T) {
	o, _ := setup(t)
	o.tiers.Hot.Set("nse:gainers", "not an int", time.Minute)
	f := &countingFetcher{}

	res, err := Resolve(context.Background(), o, "nse:gainers",
		Policy{Tier: cache.TierHot, TTL: time.Minute}, f.Fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_UnknownTier(t *testing.T) {
	o, _ := setup(t)
	f := &countingFetcher{}

	_, err := Resolve(context.Background(), o, "k", Policy{Tier: "lukewarm"}, f.Fetch)
	assert.ErrorIs(t, err, cache.ErrUnknownTier)
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestResolve_BackgroundRefreshIgnoresCallerCancel(t *testing.T) {
	o, clock := setup(t)
	policy := Policy{Tier: cache.TierHot, TTL: time.Second, SWRTTL: time.Minute}
	o.tiers.Hot.Set("nse:gainers", 1, policy.TTL)
	clock.Advance(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	_, err := Resolve(ctx, o, "nse:gainers", policy, func(ctx context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return 5, nil
	})
	require.NoError(t, err)
	cancel()
	o.Wait()

	assert.False(t, sawCancel.Load(), "refresh must outlive the triggering request")
	v, _ := o.tiers.Hot.Get("nse:gainers")
	assert.Equal(t, 5, v)
}
