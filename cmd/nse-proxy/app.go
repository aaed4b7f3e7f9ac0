package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/client"
	"github.com/Sternrassler/nse-market-client/pkg/config"
	"github.com/Sternrassler/nse-market-client/pkg/logging"
	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
	"github.com/Sternrassler/nse-market-client/pkg/warmer"
)

// app owns every long-lived component of the proxy.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *client.Client
	orch    *swr.Orchestrator
	service *marketdata.Service
	store   ratelimit.Store    // nil when rate limiting is disabled
	limiter *ratelimit.Limiter // nil when rate limiting is disabled
	warmer  *warmer.Warmer     // nil when warming is disabled
	server  *http.Server
	closers []func() error
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger.With().Str("component", "server").Logger()}

	c, err := client.New(cfg.ClientConfig(), logging.NewLogger("nse-client"))
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	a.client = c

	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}
	a.orch = swr.New(cache.NewTiers(cfg.TierConfig()), cfg.SWRConfig(), logging.NewLogger("swr"))
	a.service, err = marketdata.NewService(c, a.orch, policies, logging.NewLogger("marketdata"))
	if err != nil {
		return nil, fmt.Errorf("create market data service: %w", err)
	}

	if cfg.RateLimit.Enabled {
		store, closeStore, err := openStore(cfg.Store, a.log)
		if err != nil {
			return nil, fmt.Errorf("open rate limit store: %w", err)
		}
		a.closers = append(a.closers, closeStore)
		a.store = store

		a.limiter, err = ratelimit.NewLimiter(store, cfg.LimiterConfig(), logging.NewLogger("ratelimit"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
	}

	if cfg.Warmer.Enabled {
		a.warmer, err = warmer.New(a.service.HotTargets(), cfg.WarmerConfig(), logging.NewLogger("warmer"))
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// openStore connects the configured rate limit store and returns its closer.
func openStore(cfg config.StoreConfig, logger zerolog.Logger) (ratelimit.Store, func() error, error) {
	if !cfg.Persistent() {
		logger.Warn().
			Str("driver", cfg.Driver).
			Msg("Rate limit store is process-local, counters and flags reset on restart and are not shared between instances")
	}

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "memory":
		return ratelimit.NewMemoryStore(), func() error { return nil }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return ratelimit.NewRedisStore(rdb), rdb.Close, nil

	case "postgres", "sqlite":
		db, err := ratelimit.OpenGorm(driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := ratelimit.NewGormStore(db)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return store, sqlDB.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	if err := a.client.Prime(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Initial session priming failed, will retry on first request")
	}

	if a.warmer != nil {
		a.warmer.Start()
	}
	if a.cfg.Cache.SweepInterval > 0 {
		go a.sweep(ctx, a.cfg.Cache.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	if err := a.shutdown(); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// sweep evicts dead cache entries every interval until ctx is done.
func (a *app) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.service.Sweep(); n > 0 {
				a.log.Debug().Int("evicted", n).Msg("Swept expired cache entries")
			}
		}
	}
}

// shutdown drains HTTP requests, the warmer and background refreshes, then
// closes the rate limit store.
func (a *app) shutdown() error {
	a.log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if a.warmer != nil {
		a.warmer.Stop()
	}
	a.orch.Wait()
	a.close()
	return err
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
