// Package testutil provides testing utilities for the NSE client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// SessionCookie is the cookie the mock home page issues and the API requires.
const SessionCookie = "nsit"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockNSE is a configurable mock upstream. Its home page ("/") sets a session
// cookie; API paths answer 401 unless the request carries that cookie, unless
// RequireCookie is disabled.
type MockNSE struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requireCookie bool
	homeStatus    int
	homeDelay     time.Duration

	// Tracking
	primeCount        int
	apiCount          int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockNSE creates a new mock upstream server.
func NewMockNSE() *MockNSE {
	mock := &MockNSE{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts:    make(map[string]int),
		requireCookie: true,
		homeStatus:    http.StatusOK,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockNSE) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		m.serveHome(w, r)
		return
	}

	m.mu.Lock()
	m.apiCount++
	m.pathCounts[r.URL.Path]++
	m.lastRequestHeader = r.Header.Clone()
	requireCookie := m.requireCookie
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if requireCookie {
		if _, err := r.Cookie(SessionCookie); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"unauthorized"}`))
			return
		}
	}

	if exists {
		handler(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"not found"}`))
}

func (m *MockNSE) serveHome(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.primeCount++
	status := m.homeStatus
	delay := m.homeDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if status == http.StatusOK {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "session-token", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "bm_sv", Value: "bot-manager", Path: "/"})
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	w.Write([]byte("<html><body>home</body></html>"))
}

// URL returns the mock server URL.
func (m *MockNSE) URL() string {
	return m.server.URL
}

// Client returns an HTTP client configured for the mock server.
func (m *MockNSE) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockNSE) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockNSE) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primeCount = 0
	m.apiCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetRequireCookie toggles the session cookie check on API paths.
func (m *MockNSE) SetRequireCookie(require bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireCookie = require
}

// SetHomeStatus makes the home page answer with status; non-200 sets no cookies.
func (m *MockNSE) SetHomeStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeStatus = status
}

// SetHomeDelay delays the home page response.
func (m *MockNSE) SetHomeDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeDelay = d
}

// SetHandler sets a custom handler for a specific path.
func (m *MockNSE) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockNSE) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON answers path with 200 and body.
func (m *MockNSE) SetJSON(path, body string) {
	m.SetResponse(path, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// PrimeCount returns the number of home page requests.
func (m *MockNSE) PrimeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primeCount
}

// RequestCount returns the number of API (non-home) requests.
func (m *MockNSE) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apiCount
}

// PathCount returns the number of requests made to path.
func (m *MockNSE) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent API request.
func (m *MockNSE) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// Sample upstream payloads in the shapes the live API returns.
const (
	// GainersBody is keyed by index name, as /api/live-analysis-variations returns.
	GainersBody = `{"NIFTY":{"data":[` +
		`{"symbol":"SBIN","open_price":800,"high_price":812.5,"low_price":798,"ltp":810.4,"prev_price":790,"net_price":2.58,"trade_quantity":1234567,"turnover":99999.5},` +
		`{"symbol":"TCS","open_price":3900,"high_price":3950,"low_price":3890,"ltp":3945,"prev_price":3880,"perChange":1.67,"trade_quantity":45678,"turnover":18000}` +
		`]},"legends":[["NIFTY","NIFTY 50"]]}`

	// MostActiveBody wraps records in "data".
	MostActiveBody = `{"data":[{"symbol":"RELIANCE","lastPrice":"2,945.10","pChange":"-0.45","totalTradedVolume":"12,345,678","totalTradedValue":3636.2}]}`

	// AllIndicesBody is the /api/allIndices shape.
	AllIndicesBody = `{"data":[{"index":"NIFTY 50","indexSymbol":"NIFTY 50","last":22500.5,"variation":120.3,"percentChange":0.54,"open":22400,"high":22550,"low":22380,"previousClose":22380.2,"advances":"35","declines":"14","unchanged":"1"}]}`
)
