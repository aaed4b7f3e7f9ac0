// Command nse-proxy serves normalized NSE market data over HTTP with tiered
// SWR caching and per-user rate limiting.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nse-market-client/pkg/config"
	"github.com/Sternrassler/nse-market-client/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(cfg.LoggingConfig())
	logger.Info().Str("upstream", cfg.Upstream.BaseURL).Msg("Starting nse-proxy")

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
	logger.Info().Msg("Server stopped")
}
