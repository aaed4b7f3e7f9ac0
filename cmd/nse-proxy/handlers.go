package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/client"
	"github.com/Sternrassler/nse-market-client/pkg/marketdata"
	"github.com/Sternrassler/nse-market-client/pkg/ratelimit"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
)

type meta struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
}

type envelope struct {
	Data any  `json:"data"`
	Meta meta `json:"meta"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, marketdata.ErrInvalidArgument), errors.Is(err, cache.ErrUnknownTier):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, marketdata.ErrNoData):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, client.ErrHTTPStatus), errors.Is(err, client.ErrTransport), errors.Is(err, client.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

// respond writes a market data result as {data, meta:{fetchedAt, stale}}.
func respond[T any](w http.ResponseWriter, r *http.Request, res swr.Result[T], err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Data: res.Data,
		Meta: meta{FetchedAt: res.FetchedAt, Stale: res.Stale},
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the upstream session is primed, priming it
// if necessary.
func (a *app) handleReady(w http.ResponseWriter, r *http.Request) {
	if !a.client.HasSession() {
		if err := a.client.Prime(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not_ready", Message: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *app) handleGainers(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Gainers(r.Context(), r.URL.Query().Get("index"))
	respond(w, r, res, err)
}

func (a *app) handleLosers(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Losers(r.Context(), r.URL.Query().Get("index"))
	respond(w, r, res, err)
}

// handleMostActive accepts ?by=volume|value, defaulting to volume.
func (a *app) handleMostActive(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "volume"
	}
	res, err := a.service.MostActive(r.Context(), by)
	respond(w, r, res, err)
}

func (a *app) handleIndices(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.AllIndices(r.Context())
	respond(w, r, res, err)
}

func (a *app) handleAdvanceDecline(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.AdvanceDecline(r.Context())
	respond(w, r, res, err)
}

func (a *app) handleIndexChart(w http.ResponseWriter, r *http.Request) {
	tf := r.URL.Query().Get("timeframe")
	if tf == "" {
		tf = "1D"
	}
	res, err := a.service.IndexChart(r.Context(), chi.URLParam(r, "name"), tf)
	respond(w, r, res, err)
}

func (a *app) handleQuote(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	respond(w, r, res, err)
}

func (a *app) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.CorporateAnnouncements(r.Context())
	respond(w, r, res, err)
}

func (a *app) handleCorporateActions(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.CorporateActions(r.Context())
	respond(w, r, res, err)
}

func (a *app) handleCorporateEvents(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.CorporateEvents(r.Context())
	respond(w, r, res, err)
}

func (a *app) handleDeals(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Deals(r.Context(), chi.URLParam(r, "kind"))
	respond(w, r, res, err)
}

func (a *app) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": a.orch.Tiers().Stats()})
}

// handleCacheFlush empties one tier. Stale entries are dropped too, so the
// next read of every key in the tier goes to upstream synchronously.
func (a *app) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	name, err := cache.ParseTierName(chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := a.orch.Tiers().Flush(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("tier", string(name)).Int("entries", n).Msg("Cache tier flushed")
	writeJSON(w, http.StatusOK, map[string]any{"tier": name, "flushed": n})
}

func handleFlagged(lister ratelimit.FlaggedLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := lister.Flagged(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flagged": records})
	}
}
