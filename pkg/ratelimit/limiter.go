package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit decisions.
var (
	rateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_rate_limit_decisions_total",
		Help: "Recorded requests by endpoint and decision (allowed, denied)",
	}, []string{"endpoint", "decision"})

	rateLimitFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_rate_limit_flags_total",
		Help: "Abuse threshold crossings by endpoint and severity (soft, hard)",
	}, []string{"endpoint", "severity"})

	rateLimitStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_rate_limit_store_errors_total",
		Help: "Rate limit store failures by operation (find, upsert)",
	}, []string{"operation"})
)

// Config holds the limiter configuration.
type Config struct {
	// Window is the length of a counting window.
	Window time.Duration

	// MaxRequests is the number of requests admitted per window.
	MaxRequests int

	// SoftFlagMultiplier flags callers whose count exceeds MaxRequests times
	// this value, even while their requests are still admitted.
	SoftFlagMultiplier float64

	// HardFlagMultiplier marks the hard abuse threshold.
	HardFlagMultiplier float64
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		Window:             DefaultWindow,
		MaxRequests:        DefaultMaxRequests,
		SoftFlagMultiplier: DefaultSoftFlagMultiplier,
		HardFlagMultiplier: DefaultHardFlagMultiplier,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive (got %s)", c.Window)
	}
	if c.MaxRequests < 1 {
		return fmt.Errorf("max requests must be >= 1 (got %d)", c.MaxRequests)
	}
	if c.SoftFlagMultiplier < 1 {
		return fmt.Errorf("soft flag multiplier must be >= 1 (got %g)", c.SoftFlagMultiplier)
	}
	if c.HardFlagMultiplier < c.SoftFlagMultiplier {
		return fmt.Errorf("hard flag multiplier must be >= soft flag multiplier (got %g < %g)",
			c.HardFlagMultiplier, c.SoftFlagMultiplier)
	}
	return nil
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter admits or rejects requests per (user, endpoint).
//
// Reads and writes are not atomic: concurrent requests from the same caller
// may each read the same count, so a few requests beyond MaxRequests can be
// admitted under contention.
type Limiter struct {
	store  Store
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewLimiter creates a new limiter.
func NewLimiter(store Store, cfg Config, logger zerolog.Logger, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		store:  store,
		config: cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Check reports the decision the next request would get, without recording it.
func (l *Limiter) Check(ctx context.Context, userID, endpoint string) (Decision, error) {
	now := l.now()

	rec, err := l.store.FindByKey(ctx, userID, endpoint)
	if errors.Is(err, ErrRecordNotFound) {
		return l.fresh(false), nil
	}
	if err != nil {
		rateLimitStoreErrorsTotal.WithLabelValues("find").Inc()
		return Decision{}, fmt.Errorf("check rate limit: %w", err)
	}

	if rec.WindowExpired(now, l.config.Window) {
		return l.fresh(rec.IsFlagged), nil
	}

	resetIn := l.config.Window - rec.Elapsed(now)
	d := Decision{
		Allowed:   rec.RequestCount < l.config.MaxRequests,
		Remaining: max(l.config.MaxRequests-rec.RequestCount, 0),
		Limit:     l.config.MaxRequests,
		ResetIn:   resetIn,
		IsFlagged: rec.IsFlagged,
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d, nil
}

// Record counts one request and returns its decision. A denied request is
// still counted so that sustained overuse crosses the flag thresholds.
func (l *Limiter) Record(ctx context.Context, userID, endpoint string) (Decision, error) {
	now := l.now()

	rec, err := l.store.FindByKey(ctx, userID, endpoint)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		rec = &Record{UserID: userID, Endpoint: endpoint, WindowStart: now}
	case err != nil:
		rateLimitStoreErrorsTotal.WithLabelValues("find").Inc()
		return Decision{}, fmt.Errorf("record rate limit: %w", err)
	case rec.WindowExpired(now, l.config.Window):
		// Reset keeps the flag.
		rec.WindowStart = now
		rec.RequestCount = 0
	}

	previous := rec.RequestCount
	rec.RequestCount++
	rec.LastRequestAt = now
	l.applyFlags(rec, previous)

	if err := l.store.Upsert(ctx, rec); err != nil {
		rateLimitStoreErrorsTotal.WithLabelValues("upsert").Inc()
		return Decision{}, fmt.Errorf("record rate limit: %w", err)
	}

	resetIn := l.config.Window - rec.Elapsed(now)
	d := Decision{
		Allowed:   rec.RequestCount <= l.config.MaxRequests,
		Remaining: max(l.config.MaxRequests-rec.RequestCount, 0),
		Limit:     l.config.MaxRequests,
		ResetIn:   resetIn,
		IsFlagged: rec.IsFlagged,
	}

	if d.Allowed {
		rateLimitDecisionsTotal.WithLabelValues(endpoint, "allowed").Inc()
	} else {
		d.RetryAfter = resetIn
		rateLimitDecisionsTotal.WithLabelValues(endpoint, "denied").Inc()
		l.logger.Debug().
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Int("count", rec.RequestCount).
			Int("retry_after", d.RetryAfterSeconds()).
			Msg("Request denied by rate limiter")
	}
	return d, nil
}

// Allow records a request and returns *ExceededError when it is denied.
func (l *Limiter) Allow(ctx context.Context, userID, endpoint string) (Decision, error) {
	d, err := l.Record(ctx, userID, endpoint)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, &ExceededError{
			UserID:     userID,
			Endpoint:   endpoint,
			RetryAfter: d.RetryAfter,
			IsFlagged:  d.IsFlagged,
		}
	}
	return d, nil
}

// applyFlags sets the sticky flag when the count crosses either threshold.
func (l *Limiter) applyFlags(rec *Record, previous int) {
	soft := float64(l.config.MaxRequests) * l.config.SoftFlagMultiplier
	hard := float64(l.config.MaxRequests) * l.config.HardFlagMultiplier
	count := float64(rec.RequestCount)

	if count > hard {
		rec.IsFlagged = true
		if float64(previous) <= hard {
			rateLimitFlagsTotal.WithLabelValues(rec.Endpoint, "hard").Inc()
			l.logger.Error().
				Str("user_id", rec.UserID).
				Str("endpoint", rec.Endpoint).
				Int("count", rec.RequestCount).
				Int("max_requests", l.config.MaxRequests).
				Msg("User flagged: hard abuse threshold exceeded")
		}
		return
	}

	if count > soft {
		rec.IsFlagged = true
		if float64(previous) <= soft {
			rateLimitFlagsTotal.WithLabelValues(rec.Endpoint, "soft").Inc()
			l.logger.Warn().
				Str("user_id", rec.UserID).
				Str("endpoint", rec.Endpoint).
				Int("count", rec.RequestCount).
				Int("max_requests", l.config.MaxRequests).
				Msg("User flagged: soft abuse threshold exceeded")
		}
	}
}

func (l *Limiter) fresh(flagged bool) Decision {
	return Decision{
		Allowed:   true,
		Remaining: l.config.MaxRequests,
		Limit:     l.config.MaxRequests,
		ResetIn:   l.config.Window,
		IsFlagged: flagged,
	}
}
