package main

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/nse-market-client/pkg/metrics"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
)

// AdminTokenHeader carries the static admin token.
const AdminTokenHeader = "X-Admin-Token"

func (a *app) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if a.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(hlog.NewHandler(a.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration_ms", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ratelimit.UserIDHeader, AdminTokenHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Get("/ready", a.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/market", func(r chi.Router) {
		r.With(a.limit("gainers")).Get("/gainers", a.handleGainers)
		r.With(a.limit("losers")).Get("/losers", a.handleLosers)
		r.With(a.limit("most-active")).Get("/most-active", a.handleMostActive)
		r.With(a.limit("indices")).Get("/indices", a.handleIndices)
		r.With(a.limit("advance-decline")).Get("/advance-decline", a.handleAdvanceDecline)
		r.With(a.limit("index-chart")).Get("/index/{name}/chart", a.handleIndexChart)
		r.With(a.limit("quote")).Get("/quote/{symbol}", a.handleQuote)

		r.Route("/corporate", func(r chi.Router) {
			r.Use(a.limit("corporate"))
			r.Get("/announcements", a.handleAnnouncements)
			r.Get("/actions", a.handleCorporateActions)
			r.Get("/events", a.handleCorporateEvents)
		})

		r.With(a.limit("deals")).Get("/deals/{kind}", a.handleDeals)
	})

	if a.cfg.Admin.Token != "" {
		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/cache", a.handleCacheStats)
			r.Post("/cache/{tier}/flush", a.handleCacheFlush)
			if lister, ok := a.store.(ratelimit.FlaggedLister); ok {
				r.Get("/ratelimit/flagged", handleFlagged(lister))
			}
		})
	}

	return r
}

// limit applies the per-user rate limit for endpoint, if enabled. Callers
// are keyed by X-User-ID only behind a trusted proxy, by IP otherwise.
func (a *app) limit(endpoint string) func(http.Handler) http.Handler {
	if a.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	identify := ratelimit.IdentifyByIP
	if a.cfg.Server.TrustProxy {
		identify = ratelimit.IdentifyByHeader
	}
	return a.limiter.Middleware(endpoint, identify)
}

func (a *app) requireAdmin(next http.Handler) http.Handler {
	want := []byte(a.cfg.Admin.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(AdminTokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
