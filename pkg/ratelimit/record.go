// Package ratelimit implements a persisted per-user, per-endpoint sliding
// window limiter. Records are kept in a Store so that counts are shared
// across serving instances and survive restarts; callers crossing soft or
// hard abuse thresholds are flagged for review.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// RedisKeyPrefix namespaces rate limit records in Redis.
const RedisKeyPrefix = "nse:ratelimit"

// Defaults for limiter configuration.
const (
	DefaultWindow             = 60 * time.Second
	DefaultMaxRequests        = 60
	DefaultSoftFlagMultiplier = 1.5
	DefaultHardFlagMultiplier = 2.0
)

var (
	// ErrRecordNotFound is returned by a Store when no record exists for a key.
	ErrRecordNotFound = errors.New("rate limit record not found")

	// ErrRateLimitExceeded is matched by *ExceededError.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Record is the persisted window state of one (user, endpoint) pair.
type Record struct {
	UserID        string    `json:"user_id"`
	Endpoint      string    `json:"endpoint"`
	WindowStart   time.Time `json:"window_start"`
	RequestCount  int       `json:"request_count"`
	IsFlagged     bool      `json:"is_flagged"`
	LastRequestAt time.Time `json:"last_request_at"`
}

// Elapsed returns how long the current window has been open at now.
func (r *Record) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.WindowStart)
}

// WindowExpired reports whether the window has run its full length at now.
// An expired window resets on the next recorded request, not eagerly.
func (r *Record) WindowExpired(now time.Time, window time.Duration) bool {
	return r.Elapsed(now) >= window
}

// Decision is the outcome of Check or Record.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int

	// ResetIn is the time until the current window ends.
	ResetIn time.Duration

	// RetryAfter is set when the request is denied.
	RetryAfter time.Duration

	IsFlagged bool
}

// ResetInSeconds returns ResetIn rounded up to whole seconds.
func (d Decision) ResetInSeconds() int {
	return ceilSeconds(d.ResetIn)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return ceilSeconds(d.RetryAfter)
}

// ExceededError is returned by Limiter.Allow when a request is denied.
type ExceededError struct {
	UserID     string
	Endpoint   string
	RetryAfter time.Duration
	IsFlagged  bool
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s on %s: retry after %ds",
		e.UserID, e.Endpoint, ceilSeconds(e.RetryAfter))
}

// Is matches ErrRateLimitExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

var keyPartEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// recordKey joins the parts with ":" after escaping it inside each part, so
// ("a:b", "c") and ("a", "b:c") land on different keys.
func recordKey(userID, endpoint string) string {
	return RedisKeyPrefix + ":" + keyPartEscaper.Replace(userID) + ":" + keyPartEscaper.Replace(endpoint)
}
