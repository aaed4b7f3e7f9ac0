// Package metrics exposes the Prometheus registry and scrape handler for the
// market-data acquisition layer. Metrics themselves are declared next to the
// code that updates them (client, cache, swr, ratelimit, normalize, warmer).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Metrics Documentation
//
// Upstream Session Client (pkg/client):
//   - nse_requests_total{endpoint, status} (Counter): upstream requests by path and outcome
//   - nse_request_duration_seconds{endpoint} (Histogram): upstream request latency
//   - nse_errors_total{class} (Counter): failures by class (timeout, http, transport, malformed)
//   - nse_session_primes_total{result} (Counter): home page priming attempts (ok, failed)
//   - nse_error_payloads_total (Counter): 2xx responses shaped as {"error": ...}
//
// Tiered Cache (pkg/cache):
//   - nse_cache_hits_total{tier} (Counter)
//   - nse_cache_misses_total{tier} (Counter)
//   - nse_cache_entries{tier} (Gauge)
//   - nse_cache_flushes_total{tier} (Counter)
//
// SWR Orchestrator (pkg/swr):
//   - nse_swr_results_total{outcome} (Counter): fresh, stale, miss
//   - nse_swr_refreshes_total{result} (Counter): background refresh ok/failed
//   - nse_swr_refreshes_inflight (Gauge)
//
// Rate Limiter (pkg/ratelimit):
//   - nse_rate_limit_decisions_total{endpoint, decision} (Counter): allowed, denied
//   - nse_rate_limit_flags_total{endpoint, severity} (Counter): soft, hard
//   - nse_rate_limit_store_errors_total{operation} (Counter)
//
// Normalizer (pkg/normalize):
//   - nse_normalize_empty_total{record} (Counter): inputs with no matching container
//
// Warmer (pkg/warmer):
//   - nse_warmer_runs_total{result} (Counter)
//   - nse_warmer_run_duration_seconds (Histogram)
//
// Example Prometheus Queries:
//
//   # Share of responses served stale
//   sum(rate(nse_swr_results_total{outcome="stale"}[5m])) / sum(rate(nse_swr_results_total[5m]))
//
//   # Upstream timeout rate
//   rate(nse_errors_total{class="timeout"}[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(nse_request_duration_seconds_bucket[5m]))
