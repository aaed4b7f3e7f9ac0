package ratelimit

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// UserIDHeader carries the authenticated product user. Only a trusted auth
// proxy in front of the server may set it, and that proxy must drop any
// client-supplied value; otherwise callers pick their own identity.
const UserIDHeader = "X-User-ID"

// IdentifyFunc extracts the caller identity from a request.
type IdentifyFunc func(r *http.Request) string

// IdentifyByIP keys callers on the connection's remote address.
func IdentifyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// IdentifyByHeader uses UserIDHeader, falling back to IdentifyByIP. Use it
// only behind a proxy that owns the header (see UserIDHeader).
func IdentifyByHeader(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return "user:" + id
	}
	return IdentifyByIP(r)
}

// SetHeaders writes the X-RateLimit-* headers and, when denied, Retry-After.
func SetHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(d.ResetInSeconds()))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

// Middleware records every request against endpoint and answers 429 when the
// caller's window is exhausted. Store failures are logged and the request is
// admitted. A nil identify keys callers by IP.
func (l *Limiter) Middleware(endpoint string, identify IdentifyFunc) func(http.Handler) http.Handler {
	if identify == nil {
		identify = IdentifyByIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := identify(r)

			d, err := l.Allow(r.Context(), userID, endpoint)
			var exceeded *ExceededError
			switch {
			case errors.As(err, &exceeded):
				SetHeaders(w, d)
				writeExceeded(w, exceeded)
				return
			case err != nil:
				l.logger.Error().
					Err(err).
					Str("user_id", userID).
					Str("endpoint", endpoint).
					Msg("Rate limit store unavailable, admitting request")
			default:
				SetHeaders(w, d)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeExceeded(w http.ResponseWriter, e *ExceededError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             "rate_limit_exceeded",
		"message":           "Too many requests, please retry later",
		"retryAfterSeconds": ceilSeconds(e.RetryAfter),
		"isFlagged":         e.IsFlagged,
	})
}
