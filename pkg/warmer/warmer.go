// Package warmer keeps hot cache entries warm by resolving them on a cron
// schedule, so user requests rarely take the synchronous upstream path.
//
// Each run resolves every target in parallel, bounded by MaxConcurrency.
// A failing target does not cancel the others; failures are logged and the
// SWR cache keeps serving the previous value.
//
// Example usage:
//
//	w, err := warmer.New(service.HotTargets(), warmer.DefaultConfig(), logger)
//	if err != nil { ... }
//	w.Start()
//	defer w.Stop()
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
)

var (
	warmerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_warmer_runs_total",
		Help: "Warm-up runs by result (ok, partial, failed)",
	}, []string{"result"})

	warmerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nse_warmer_run_duration_seconds",
		Help:    "Duration of warm-up runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds warmer configuration.
type Config struct {
	// Schedule is a cron spec; descriptors such as "@every 1m" are accepted.
	Schedule string

	// MaxConcurrency bounds targets resolved at once.
	// Keep it low: the upstream is rate-sensitive.
	MaxConcurrency int

	// Timeout bounds one whole run.
	Timeout time.Duration
}

// DefaultConfig returns the default warmer configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:       "@every 1m",
		MaxConcurrency: 3,
		Timeout:        30 * time.Second,
	}
}

// Report summarizes one run.
type Report struct {
	RunID     string
	Targets   int
	Failed    []string
	Duration  time.Duration
	StartedAt time.Time
}

// Warmer runs warm-up targets on a schedule.
type Warmer struct {
	cron    *cron.Cron
	targets []marketdata.WarmTarget
	config  Config
	log     zerolog.Logger
}

// New creates a warmer. The schedule is validated here, not at Start.
func New(targets []marketdata.WarmTarget, cfg Config, log zerolog.Logger) (*Warmer, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultConfig().Schedule
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	w := &Warmer{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		targets: targets,
		config:  cfg,
		log:     log.With().Str("component", "warmer").Logger(),
	}

	if _, err := w.cron.AddFunc(cfg.Schedule, func() {
		w.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid warmer schedule %q: %w", cfg.Schedule, err)
	}
	return w, nil
}

// Start starts the schedule.
func (w *Warmer) Start() {
	w.cron.Start()
	w.log.Info().
		Str("schedule", w.config.Schedule).
		Int("targets", len(w.targets)).
		Msg("Warmer started")
}

// Stop stops the schedule and waits for a running warm-up to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.log.Info().Msg("Warmer stopped")
}

// RunOnce resolves every target once.
func (w *Warmer) RunOnce(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.NewString(),
		Targets:   len(w.targets),
		StartedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(w.config.MaxConcurrency)

	for _, target := range w.targets {
		target := target
		g.Go(func() error {
			if err := target.Run(ctx); err != nil {
				w.log.Warn().
					Err(err).
					Str("run_id", report.RunID).
					Str("target", target.Name).
					Msg("Warm-up target failed")

				mu.Lock()
				report.Failed = append(report.Failed, target.Name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartedAt)
	warmerRunDuration.Observe(report.Duration.Seconds())

	result := "ok"
	switch {
	case len(report.Failed) == 0:
	case len(report.Failed) == report.Targets:
		result = "failed"
	default:
		result = "partial"
	}
	warmerRunsTotal.WithLabelValues(result).Inc()

	w.log.Info().
		Str("run_id", report.RunID).
		Int("targets", report.Targets).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("Warm-up run complete")

	return report
}
