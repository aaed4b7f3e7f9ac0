package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/nse-market-client/pkg/logging"
)

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.baseUrl must be an absolute URL (got %q)", c.Upstream.BaseURL)
	}
	if c.Upstream.UserAgent == "" {
		return errors.New("upstream.userAgent must be set")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}

	if c.Cache.HotTTL <= 0 || c.Cache.NormalTTL <= 0 || c.Cache.StaticTTL <= 0 {
		return errors.New("cache tier TTLs must be positive")
	}
	if c.Cache.SweepInterval < 0 {
		return errors.New("cache.sweepInterval must not be negative")
	}
	policies, err := c.Policies()
	if err != nil {
		return err
	}
	if err := policies.Validate(); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if err := c.LimiterConfig().Validate(); err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redisAddr must be set for the redis store")
		}
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the %s store", c.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store driver: %s. Must be 'memory', 'redis', 'postgres' or 'sqlite'", c.Store.Driver)
	}

	if c.Warmer.Enabled && c.Warmer.MaxConcurrency < 1 {
		return errors.New("warmer.maxConcurrency must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
