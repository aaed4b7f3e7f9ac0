package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks live reads by tier.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nse_cache_hits_total",
			Help: "Total number of live cache reads by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks reads that found nothing live, by tier.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nse_cache_misses_total",
			Help: "Total number of cache reads without a live value by tier",
		},
		[]string{"tier"},
	)

	// CacheEntries tracks the number of stored entries (live or expired).
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nse_cache_entries",
			Help: "Current number of entries held per cache tier",
		},
		[]string{"tier"},
	)

	// CacheFlushes tracks administrative flushes.
	CacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nse_cache_flushes_total",
			Help: "Total number of full tier flushes",
		},
		[]string{"tier"},
	)

	// CacheEvictions tracks entries removed by Sweep.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nse_cache_evictions_total",
			Help: "Total number of entries swept after their stale window",
		},
		[]string{"tier"},
	)
)
