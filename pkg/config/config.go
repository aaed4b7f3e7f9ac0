// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and NSE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/client"
	"github.com/Sternrassler/nse-market-client/pkg/logging"
	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
	"github.com/Sternrassler/nse-market-client/pkg/warmer"
)

const (
	// EnvPrefix prefixes every environment override, e.g. NSE_SERVER_ADDR.
	EnvPrefix = "NSE"

	// EnvConfigFile names an optional YAML configuration file.
	EnvConfigFile = "NSE_CONFIG_FILE"

	// DefaultStoreDriver is the rate limit store used when none is configured.
	DefaultStoreDriver = "sqlite"

	// DefaultSQLiteDSN is the database file of the sqlite store when
	// store.dsn is empty.
	DefaultSQLiteDSN = "nse-ratelimit.db"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Store     StoreConfig     `mapstructure:"store"`
	Warmer    WarmerConfig    `mapstructure:"warmer"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	CORSOrigins     []string      `mapstructure:"corsOrigins"`
	// TrustProxy honors X-User-ID and forwarded client addresses. Enable it
	// only behind a proxy that sets and sanitizes those headers.
	TrustProxy      bool          `mapstructure:"trustProxy"`
}

type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"baseUrl"`
	UserAgent    string        `mapstructure:"userAgent"`
	Referer      string        `mapstructure:"referer"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PrimeTimeout time.Duration `mapstructure:"primeTimeout"`
}

// PolicyConfig is one named freshness policy.
type PolicyConfig struct {
	Tier string        `mapstructure:"tier"`
	TTL  time.Duration `mapstructure:"ttl"`
	SWR  time.Duration `mapstructure:"swr"`
}

type CacheConfig struct {
	HotTTL         time.Duration `mapstructure:"hotTtl"`
	NormalTTL      time.Duration `mapstructure:"normalTtl"`
	StaticTTL      time.Duration `mapstructure:"staticTtl"`
	RefreshTimeout time.Duration `mapstructure:"refreshTimeout"`
	// SweepInterval is how often entries past every stale window are
	// evicted. Zero disables sweeping.
	SweepInterval  time.Duration `mapstructure:"sweepInterval"`

	// Policies is keyed by policy name. Keys are case-insensitive.
	Policies map[string]PolicyConfig `mapstructure:"policies"`
}

type RateLimitConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Window             time.Duration `mapstructure:"window"`
	MaxRequests        int           `mapstructure:"maxRequests"`
	SoftFlagMultiplier float64       `mapstructure:"softFlagMultiplier"`
	HardFlagMultiplier float64       `mapstructure:"hardFlagMultiplier"`
}

// StoreConfig selects the rate limit store: memory, redis, postgres or sqlite.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDb"`
	DSN           string `mapstructure:"dsn"`
}

// Persistent reports whether limiter state outlives the process.
func (s StoreConfig) Persistent() bool {
	switch strings.ToLower(s.Driver) {
	case "memory":
		return false
	case "sqlite":
		return !strings.Contains(s.DSN, ":memory:")
	default:
		return true
	}
}

type WarmerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Schedule       string        `mapstructure:"schedule"`
	MaxConcurrency int           `mapstructure:"maxConcurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type AdminConfig struct {
	// Token guards the admin routes. Empty disables them.
	Token string `mapstructure:"token"`
}

// Load reads configuration from the environment and NSE_CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile reads configuration from file (optional, YAML) and the environment.
func LoadFile(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	if strings.EqualFold(cfg.Store.Driver, "sqlite") && cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultSQLiteDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// splitList expands comma-separated entries, as environment values arrive.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ClientConfig returns the upstream session client configuration.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:      c.Upstream.BaseURL,
		UserAgent:    c.Upstream.UserAgent,
		Referer:      c.Upstream.Referer,
		Timeout:      c.Upstream.Timeout,
		PrimeTimeout: c.Upstream.PrimeTimeout,
	}
}

// TierConfig returns the cache tier defaults.
func (c *Config) TierConfig() cache.Config {
	return cache.Config{
		HotTTL:    c.Cache.HotTTL,
		NormalTTL: c.Cache.NormalTTL,
		StaticTTL: c.Cache.StaticTTL,
	}
}

// SWRConfig returns the orchestrator configuration.
func (c *Config) SWRConfig() swr.Config {
	return swr.Config{RefreshTimeout: c.Cache.RefreshTimeout}
}

// Policies returns the configured freshness policies.
func (c *Config) Policies() (marketdata.Policies, error) {
	out := marketdata.Policies{}
	for key, pc := range c.Cache.Policies {
		name, ok := policyName(key)
		if !ok {
			return nil, fmt.Errorf("unknown cache policy %q", key)
		}
		tier, err := cache.ParseTierName(pc.Tier)
		if err != nil {
			return nil, fmt.Errorf("cache policy %s: %w", key, err)
		}
		out[name] = swr.Policy{Tier: tier, TTL: pc.TTL, SWRTTL: pc.SWR}
	}
	return out, nil
}

func policyName(key string) (marketdata.PolicyName, bool) {
	for _, name := range marketdata.PolicyNames {
		if strings.EqualFold(string(name), key) {
			return name, true
		}
	}
	return "", false
}

// LimiterConfig returns the rate limiter configuration.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Window:             c.RateLimit.Window,
		MaxRequests:        c.RateLimit.MaxRequests,
		SoftFlagMultiplier: c.RateLimit.SoftFlagMultiplier,
		HardFlagMultiplier: c.RateLimit.HardFlagMultiplier,
	}
}

// WarmerConfig returns the cache warmer configuration.
func (c *Config) WarmerConfig() warmer.Config {
	return warmer.Config{
		Schedule:       c.Warmer.Schedule,
		MaxConcurrency: c.Warmer.MaxConcurrency,
		Timeout:        c.Warmer.Timeout,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	cfg.Pretty = c.Log.Pretty
	return cfg
}
