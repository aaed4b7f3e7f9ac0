// Package swr serves cached market data with stale-while-revalidate semantics.
//
// Resolve returns a live cached value when there is one, returns the last
// known value marked stale while refreshing it in the background when the
// entry is inside its grace window, and fetches synchronously otherwise.
package swr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	swrResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_swr_results_total",
		Help: "Resolve outcomes by kind (fresh, stale, miss)",
	}, []string{"outcome"})

	swrRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_swr_refreshes_total",
		Help: "Background refreshes by result (ok, failed)",
	}, []string{"result"})

	swrRefreshesInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nse_swr_refreshes_inflight",
		Help: "Background refreshes currently running",
	})
)

// Outcome labels.
const (
	OutcomeFresh = "fresh"
	OutcomeStale = "stale"
	OutcomeMiss  = "miss"
)

// DefaultRefreshTimeout bounds a single background refresh.
const DefaultRefreshTimeout = 15 * time.Second

// Policy selects the tier and freshness budget for one kind of data.
type Policy struct {
	// Tier is the cache tier the value is stored in.
	Tier cache.TierName

	// TTL is how long a fetched value is served as fresh.
	TTL time.Duration

	// SWRTTL is how long past expiry a value may still be served stale.
	SWRTTL time.Duration
}

// Result is a resolved value plus its freshness marker.
type Result[T any] struct {
	Data T

	// Stale is true when Data is past its TTL and a refresh was scheduled.
	Stale bool

	// FetchedAt is when Data was written to the cache.
	FetchedAt time.Time
}

// Fetcher produces a fresh value from upstream.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Config holds orchestrator settings.
type Config struct {
	// RefreshTimeout bounds each background refresh.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{RefreshTimeout: DefaultRefreshTimeout}
}

// Orchestrator wraps the tiered cache with stale-while-revalidate reads.
type Orchestrator struct {
	tiers  *cache.Tiers
	config Config
	logger zerolog.Logger

	group    singleflight.Group
	inflight sync.WaitGroup
}

// New creates an orchestrator over tiers.
func New(tiers *cache.Tiers, cfg Config, logger zerolog.Logger) *Orchestrator {
	if tiers == nil {
		panic("swr: tiers cannot be nil")
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	return &Orchestrator{
		tiers:  tiers,
		config: cfg,
		logger: logger.With().Str("component", "swr").Logger(),
	}
}

// Tiers returns the cache tiers the orchestrator reads and writes.
func (o *Orchestrator) Tiers() *cache.Tiers {
	return o.tiers
}

// Wait blocks until every background refresh started so far has finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// Resolve returns the value for key according to p:
//
//  1. a live cached value is returned with Stale=false and no upstream call;
//  2. a value written less than TTL+SWRTTL ago is returned with Stale=true and
//     fetch runs in the background, its failure only logged;
//  3. otherwise fetch runs synchronously, its result is cached and returned,
//     and its error is returned to the caller.
func Resolve[T any](ctx context.Context, o *Orchestrator, key string, p Policy, fetch Fetcher[T]) (Result[T], error) {
	var zero Result[T]

	tier, err := o.tiers.Tier(p.Tier)
	if err != nil {
		return zero, err
	}

	if v, ok := tier.Get(key); ok {
		if data, ok := v.(T); ok {
			swrResultsTotal.WithLabelValues(OutcomeFresh).Inc()
			return Result[T]{Data: data, FetchedAt: writtenAt(tier, key)}, nil
		}
		o.logger.Warn().Str("key", key).Str("tier", string(p.Tier)).Msg("Cached value has unexpected type, refetching")
	}

	if age, ok := tier.TimeSinceWrite(key); ok {
		entry, err := tier.Peek(key)
		if err == nil && age < entry.TTL+p.SWRTTL {
			if data, ok := entry.Value.(T); ok {
				swrResultsTotal.WithLabelValues(OutcomeStale).Inc()
				o.logger.Debug().
					Str("key", key).
					Str("tier", string(p.Tier)).
					Dur("age", age).
					Msg("Serving stale value, refresh scheduled")

				o.refresh(ctx, tier, key, p.TTL, func(ctx context.Context) (any, error) {
					return fetch(ctx)
				})
				return Result[T]{Data: data, Stale: true, FetchedAt: entry.WrittenAt}, nil
			}
		}
	}

	swrResultsTotal.WithLabelValues(OutcomeMiss).Inc()
	data, err := fetch(ctx)
	if err != nil {
		return zero, fmt.Errorf("resolve %s: %w", key, err)
	}
	tier.Set(key, data, p.TTL)

	return Result[T]{Data: data, FetchedAt: writtenAt(tier, key)}, nil
}

// refresh runs fetch in a detached goroutine and stores its result.
// Concurrent refreshes of the same tier/key collapse into one.
func (o *Orchestrator) refresh(ctx context.Context, tier *cache.Tier, key string, ttl time.Duration, fetch func(context.Context) (any, error)) {
	o.inflight.Add(1)
	swrRefreshesInflight.Inc()

	// Keep request-scoped values (request id) but drop the caller's cancellation.
	detached := context.WithoutCancel(ctx)

	go func() {
		defer o.inflight.Done()
		defer swrRefreshesInflight.Dec()

		leader := false
		_, err, _ := o.group.Do(string(tier.Name())+"|"+key, func() (v any, err error) {
			leader = true
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("refresh panicked: %v", r)
				}
			}()

			rctx, cancel := context.WithTimeout(detached, o.config.RefreshTimeout)
			defer cancel()

			fresh, err := fetch(rctx)
			if err != nil {
				return nil, err
			}
			tier.Set(key, fresh, ttl)
			return nil, nil
		})
		if !leader {
			return
		}

		if err != nil {
			swrRefreshesTotal.WithLabelValues("failed").Inc()
			o.logger.Warn().
				Err(err).
				Str("key", key).
				Str("tier", string(tier.Name())).
				Msg("Background refresh failed, keeping stale value")
			return
		}
		swrRefreshesTotal.WithLabelValues("ok").Inc()
	}()
}

func writtenAt(tier *cache.Tier, key string) time.Time {
	entry, err := tier.Peek(key)
	if err != nil {
		return tier.Now()
	}
	return entry.WrittenAt
}
