// Package cache provides the process-local tiered cache used in front of the
// upstream market-data provider.
//
// Three tiers exist: hot, normal and static. They share one implementation
// and differ only in their default TTL. Which tier a value lives in is decided
// at the call site; the same key string may exist in more than one tier.
//
// # Basic Usage
//
//	tiers := cache.NewTiers(cache.DefaultConfig())
//
//	key := cache.Key{Category: "index", Identifier: "NIFTY 50", SubResource: "chart", Variant: "1D"}.String()
//	// nse:index:NIFTY 50:chart:1D
//
//	tiers.Hot.Set(key, points, 20*time.Second)
//
//	if v, ok := tiers.Hot.Get(key); ok {
//		// live value
//	}
//
//	if age, ok := tiers.Hot.TimeSinceWrite(key); ok {
//		// expired values are still reachable here, for stale-while-revalidate
//	}
//
// Get only returns values younger than their TTL. Expired values stay in the
// tier until they are overwritten or flushed, so the SWR orchestrator can serve
// them as stale data during its grace window.
//
// # Metrics
//
//   - nse_cache_hits_total{tier}
//   - nse_cache_misses_total{tier}
//   - nse_cache_entries{tier}
//   - nse_cache_flushes_total{tier}
package cache
