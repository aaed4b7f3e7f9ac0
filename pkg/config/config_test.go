package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/client"
	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, client.DefaultBaseURL, cfg.Upstream.BaseURL)
	assert.Equal(t, client.DefaultTimeout, cfg.Upstream.Timeout)
	assert.Equal(t, cache.DefaultHotTTL, cfg.Cache.HotTTL)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, ratelimit.DefaultMaxRequests, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, DefaultSQLiteDSN, cfg.Store.DSN)
	assert.True(t, cfg.Store.Persistent(), "limiter state must survive restarts by default")
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Server.TrustProxy)
	assert.True(t, cfg.Warmer.Enabled)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, marketdata.DefaultPolicies(), policies)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("NSE_SERVER_ADDR", ":9090")
	t.Setenv("NSE_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("NSE_RATELIMIT_MAXREQUESTS", "5")
	t.Setenv("NSE_CACHE_POLICIES_QUOTE_TTL", "45s")
	t.Setenv("NSE_SERVER_CORSORIGINS", "https://a.example, https://b.example")
	t.Setenv("NSE_ADMIN_TOKEN", "secret")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 5, cfg.LimiterConfig().MaxRequests)
	assert.Equal(t, "secret", cfg.Admin.Token)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, policies[marketdata.PolicyQuote].TTL)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nse.yaml")
	yaml := `
server:
  addr: ":7000"
store:
  driver: sqlite
  dsn: "file::memory:"
cache:
  policies:
    mostActive:
      tier: hot
      ttl: 20s
      swr: 40s
log:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.LoggingConfig().Pretty)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	p := policies[marketdata.PolicyMostActive]
	assert.Equal(t, cache.TierHot, p.Tier)
	assert.Equal(t, 20*time.Second, p.TTL)
	assert.Equal(t, 40*time.Second, p.SWRTTL)

	// Untouched policies keep their defaults.
	assert.Equal(t, marketdata.DefaultPolicies()[marketdata.PolicyCorporate], policies[marketdata.PolicyCorporate])
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file error")
}

func TestStoreConfig_Persistent(t *testing.T) {
	tests := []struct {
		store StoreConfig
		want  bool
	}{
		{StoreConfig{Driver: "memory"}, false},
		{StoreConfig{Driver: "sqlite", DSN: "file::memory:"}, false},
		{StoreConfig{Driver: "sqlite", DSN: "/var/lib/nse/ratelimit.db"}, true},
		{StoreConfig{Driver: "redis", RedisAddr: "redis:6379"}, true},
		{StoreConfig{Driver: "postgres", DSN: "host=db"}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.store.Persistent(), "%+v", tt.store)
	}
}

func TestLoadFile_MemoryStoreIsOptIn(t *testing.T) {
	t.Setenv("NSE_STORE_DRIVER", "memory")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Empty(t, cfg.Store.DSN)
	assert.False(t, cfg.Store.Persistent())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad base url", map[string]string{"NSE_UPSTREAM_BASEURL": "not a url"}, "upstream.baseUrl"},
		{"unknown driver", map[string]string{"NSE_STORE_DRIVER": "mongo"}, "invalid store driver"},
		{"postgres without dsn", map[string]string{"NSE_STORE_DRIVER": "postgres"}, "store.dsn"},
		{"zero max requests", map[string]string{"NSE_RATELIMIT_MAXREQUESTS": "0"}, "ratelimit"},
		{"negative sweep interval", map[string]string{"NSE_CACHE_SWEEPINTERVAL": "-1s"}, "cache.sweepInterval"},
		{"unknown tier", map[string]string{"NSE_CACHE_POLICIES_QUOTE_TIER": "lukewarm"}, "cache policy"},
		{"bad log level", map[string]string{"NSE_LOG_LEVEL": "loud"}, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DisabledLimiterSkipsLimits(t *testing.T) {
	t.Setenv("NSE_RATELIMIT_ENABLED", "false")
	t.Setenv("NSE_RATELIMIT_MAXREQUESTS", "0")

	_, err := LoadFile("")
	assert.NoError(t, err)
}

func TestConversions(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, cfg.Upstream.UserAgent, cfg.ClientConfig().UserAgent)
	assert.Equal(t, cache.DefaultConfig(), cfg.TierConfig())
	assert.Equal(t, cfg.Cache.RefreshTimeout, cfg.SWRConfig().RefreshTimeout)
	assert.Equal(t, ratelimit.DefaultConfig(), cfg.LimiterConfig())
	assert.Equal(t, "@every 1m", cfg.WarmerConfig().Schedule)
}
