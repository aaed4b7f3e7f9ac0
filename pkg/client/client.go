// Package client provides the upstream session client: a cookie-bearing HTTP
// client that primes a browser-like session on the NSE site, performs
// bounded-timeout JSON fetches and classifies their failures.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// Prometheus metrics for upstream operations.
var (
	nseRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	nseRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nse_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	nseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	nseSessionPrimesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_session_primes_total",
		Help: "Session priming attempts by result (ok, failed)",
	}, []string{"result"})

	nseErrorPayloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nse_error_payloads_total",
		Help: "2xx upstream responses whose body is shaped as {\"error\": ...}",
	})
)

const (
	// DefaultBaseURL is the upstream origin.
	DefaultBaseURL = "https://www.nseindia.com"

	// DefaultUserAgent mimics a desktop browser; the upstream rejects obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultTimeout bounds every real upstream request.
	DefaultTimeout = 10 * time.Second

	// DefaultPrimeTimeout bounds the home page request that acquires cookies.
	DefaultPrimeTimeout = 5 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 16 << 20
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the upstream origin relative paths are resolved against.
	BaseURL string

	// UserAgent is sent on every request, priming included.
	UserAgent string

	// Referer is sent on every request. Defaults to BaseURL + "/".
	Referer string

	// Timeout bounds each real request, body read included.
	Timeout time.Duration

	// PrimeTimeout bounds the session priming request.
	PrimeTimeout time.Duration

	// HTTPClient is copied and given the session jar. Optional.
	HTTPClient *http.Client
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
		PrimeTimeout: DefaultPrimeTimeout,
	}
}

// Client is the upstream session client.
type Client struct {
	httpClient *http.Client
	jar        *sessionJar
	origin     *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client that logs to logger.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	origin, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PrimeTimeout <= 0 {
		cfg.PrimeTimeout = DefaultPrimeTimeout
	}
	cfg.BaseURL = origin.String()
	if cfg.Referer == "" {
		cfg.Referer = cfg.BaseURL + "/"
	}

	jar := newSessionJar()

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		httpClient = &copied
	}
	httpClient.Jar = jar

	return &Client{
		httpClient: httpClient,
		jar:        jar,
		origin:     origin,
		config:     cfg,
		logger:     logger.With().Str("component", "nse-client").Logger(),
	}, nil
}

// Fetch performs a GET against path and returns the decoded JSON body.
//
// path may be a full URL, used as-is, or a path relative to BaseURL. query is
// appended verbatim; a leading "?" is optional. When the session holds no
// cookies for the upstream origin a best-effort priming request runs first.
//
// Failures are returned as *UpstreamError and are never retried. A 2xx body
// shaped as {"error": ...} is logged and returned unchanged.
func (c *Client) Fetch(ctx context.Context, path, query string) (any, error) {
	target, endpoint := c.resolve(path, query)

	if !c.HasSession() {
		if err := c.Prime(ctx); err != nil {
			c.logger.Warn().Err(err).Str("path", endpoint).Msg("Session priming failed, continuing without cookies")
		}
	}

	startTime := time.Now()
	defer func() {
		nseRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(endpoint, "invalid_request", &UpstreamError{Class: ErrorClassTransport, Path: endpoint, Err: err})
	}
	c.setHeaders(req, "application/json")

	requestID := uuid.NewString()
	c.logger.Debug().
		Str("request_id", requestID).
		Str("path", endpoint).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyTransport(ctx, err)
		return nil, c.fail(endpoint, string(class), &UpstreamError{Class: class, Path: endpoint, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.ResetSession()
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Str("path", endpoint).
				Msg("Upstream rejected session, cookies discarded")
		}

		return nil, c.fail(endpoint, strconv.Itoa(resp.StatusCode), &UpstreamError{
			Class:      ErrorClassHTTP,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Path:       endpoint,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		class := classifyTransport(ctx, err)
		return nil, c.fail(endpoint, string(class), &UpstreamError{Class: class, Path: endpoint, Err: err})
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.fail(endpoint, string(ErrorClassMalformed), &UpstreamError{
			Class: ErrorClassMalformed,
			Path:  endpoint,
			Err:   err,
		})
	}

	nseRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if obj, ok := payload.(map[string]any); ok {
		if upstreamErr, has := obj["error"]; has {
			nseErrorPayloadsTotal.Inc()
			c.logger.Warn().
				Str("request_id", requestID).
				Str("path", endpoint).
				Interface("error", upstreamErr).
				Msg("Upstream returned an error payload with a success status")
		}
	}

	return payload, nil
}

// Prime requests the upstream home page so the session jar receives cookies.
// Fetch calls it automatically; callers may use it to warm the session.
func (c *Client) Prime(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.PrimeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/", nil)
	if err != nil {
		nseSessionPrimesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("create prime request: %w", err)
	}
	c.setHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		nseSessionPrimesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("prime session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nseSessionPrimesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("prime session: unexpected status %d", resp.StatusCode)
	}

	nseSessionPrimesTotal.WithLabelValues("ok").Inc()
	c.logger.Info().
		Int("cookies", len(c.jar.Cookies(c.origin))).
		Msg("Upstream session primed")
	return nil
}

// HasSession reports whether the jar holds cookies for the upstream origin.
func (c *Client) HasSession() bool {
	return len(c.jar.Cookies(c.origin)) > 0
}

// ResetSession discards all session cookies. The next Fetch primes again.
func (c *Client) ResetSession() {
	c.jar.reset()
}

// BaseURL returns the upstream origin.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.config.Referer)
}

// resolve returns the request URL and the path used for logs and metric labels.
func (c *Client) resolve(path, query string) (target, endpoint string) {
	query = strings.TrimPrefix(query, "?")

	target = path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.config.BaseURL + path
	}

	endpoint = target
	if u, err := url.Parse(target); err == nil {
		endpoint = u.Path
	}

	if query != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query
	}
	return target, endpoint
}

// fail records metrics and logs for a failed fetch and returns err.
func (c *Client) fail(endpoint, status string, err *UpstreamError) error {
	nseErrorsTotal.WithLabelValues(string(err.Class)).Inc()
	nseRequestsTotal.WithLabelValues(endpoint, status).Inc()

	c.logger.Debug().
		Err(err).
		Str("path", endpoint).
		Str("class", string(err.Class)).
		Msg("Upstream request failed")
	return err
}

// classifyTransport separates deadline expiry from other transport failures.
func classifyTransport(ctx context.Context, err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassTransport
}

// sessionJar is an http.CookieJar whose contents can be discarded atomically.
type sessionJar struct {
	current atomic.Pointer[cookiejar.Jar]
}

func newSessionJar() *sessionJar {
	j := &sessionJar{}
	j.reset()
	return j
}

func (j *sessionJar) reset() {
	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.current.Store(jar)
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current.Load().SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current.Load().Cookies(u)
}
