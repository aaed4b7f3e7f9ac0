package config

import (
	"github.com/spf13/viper"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/client"
	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
	"github.com/Sternrassler/nse-market-client/pkg/warmer"
)

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "20s")
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.trustProxy", false)

	// Upstream
	v.SetDefault("upstream.baseUrl", client.DefaultBaseURL)
	v.SetDefault("upstream.userAgent", client.DefaultUserAgent)
	v.SetDefault("upstream.referer", "")
	v.SetDefault("upstream.timeout", client.DefaultTimeout)
	v.SetDefault("upstream.primeTimeout", client.DefaultPrimeTimeout)

	// Cache tiers
	v.SetDefault("cache.hotTtl", cache.DefaultHotTTL)
	v.SetDefault("cache.normalTtl", cache.DefaultNormalTTL)
	v.SetDefault("cache.staticTtl", cache.DefaultStaticTTL)
	v.SetDefault("cache.refreshTimeout", swr.DefaultRefreshTimeout)
	v.SetDefault("cache.sweepInterval", "1m")

	// Cache policies
	for name, p := range marketdata.DefaultPolicies() {
		prefix := "cache.policies." + string(name)
		v.SetDefault(prefix+".tier", string(p.Tier))
		v.SetDefault(prefix+".ttl", p.TTL)
		v.SetDefault(prefix+".swr", p.SWRTTL)
	}

	// Rate limiting
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", ratelimit.DefaultWindow)
	v.SetDefault("ratelimit.maxRequests", ratelimit.DefaultMaxRequests)
	v.SetDefault("ratelimit.softFlagMultiplier", ratelimit.DefaultSoftFlagMultiplier)
	v.SetDefault("ratelimit.hardFlagMultiplier", ratelimit.DefaultHardFlagMultiplier)

	// Rate limit store. Counters and flags outlive the process by default;
	// "memory" is an explicit opt-in for single instances and tests.
	v.SetDefault("store.driver", DefaultStoreDriver)
	v.SetDefault("store.redisAddr", "localhost:6379")
	v.SetDefault("store.redisPassword", "")
	v.SetDefault("store.redisDb", 0)
	v.SetDefault("store.dsn", "")

	// Warmer
	w := warmer.DefaultConfig()
	v.SetDefault("warmer.enabled", true)
	v.SetDefault("warmer.schedule", w.Schedule)
	v.SetDefault("warmer.maxConcurrency", w.MaxConcurrency)
	v.SetDefault("warmer.timeout", w.Timeout)

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Admin
	v.SetDefault("admin.token", "")
}
