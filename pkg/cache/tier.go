package cache

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCacheMiss indicates the key holds no value at all, live or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownTier indicates a tier name outside hot, normal and static.
	ErrUnknownTier = errors.New("unknown cache tier")
)

// Option configures a Tier.
type Option func(*Tier)

// WithClock replaces time.Now as the tier's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tier) {
		if now != nil {
			t.now = now
		}
	}
}

// Tier is one in-memory key/value store with a default TTL.
// It is safe for concurrent use.
type Tier struct {
	name       TierName
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewTier creates an empty tier.
func NewTier(name TierName, defaultTTL time.Duration, opts ...Option) *Tier {
	t := &Tier{
		name:       name,
		defaultTTL: defaultTTL,
		now:        time.Now,
		entries:    make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tier name.
func (t *Tier) Name() TierName { return t.name }

// DefaultTTL returns the TTL Set uses when given a non-positive ttl.
func (t *Tier) DefaultTTL() time.Duration { return t.defaultTTL }

// Now returns the current time according to the tier's clock.
func (t *Tier) Now() time.Time { return t.now() }

// Get returns the value for key only while it is live.
func (t *Tier) Get(key string) (any, bool) {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()

	if !ok || entry.IsExpired(t.now()) {
		CacheMisses.WithLabelValues(string(t.name)).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(string(t.name)).Inc()
	return entry.Value, true
}

// Peek returns the stored entry regardless of expiry.
// Returns ErrCacheMiss if nothing was ever written under key.
func (t *Tier) Peek(key string) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[key]
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	return entry, nil
}

// Set stores value under key, replacing any previous entry.
// A non-positive ttl selects the tier's default TTL.
func (t *Tier) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	t.mu.Lock()
	t.entries[key] = Entry{
		Key:       key,
		Value:     value,
		WrittenAt: t.now(),
		TTL:       ttl,
	}
	size := len(t.entries)
	t.mu.Unlock()

	CacheEntries.WithLabelValues(string(t.name)).Set(float64(size))
}

// TimeSinceWrite reports how long ago key was last written.
func (t *Tier) TimeSinceWrite(key string) (time.Duration, bool) {
	entry, err := t.Peek(key)
	if err != nil {
		return 0, false
	}
	return entry.Age(t.now()), true
}

// Delete removes a single key.
func (t *Tier) Delete(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	size := len(t.entries)
	t.mu.Unlock()

	CacheEntries.WithLabelValues(string(t.name)).Set(float64(size))
}

// FlushAll drops every entry and returns how many were removed.
func (t *Tier) FlushAll() int {
	t.mu.Lock()
	n := len(t.entries)
	t.entries = make(map[string]Entry)
	t.mu.Unlock()

	CacheEntries.WithLabelValues(string(t.name)).Set(0)
	CacheFlushes.WithLabelValues(string(t.name)).Inc()
	return n
}

// Sweep removes entries that expired more than grace ago and returns how
// many it dropped. Entries inside TTL+grace stay visible to Peek and
// TimeSinceWrite.
func (t *Tier) Sweep(grace time.Duration) int {
	if grace < 0 {
		grace = 0
	}
	now := t.now()

	t.mu.Lock()
	n := 0
	for key, entry := range t.entries {
		if entry.Age(now) >= entry.TTL+grace {
			delete(t.entries, key)
			n++
		}
	}
	size := len(t.entries)
	t.mu.Unlock()

	CacheEntries.WithLabelValues(string(t.name)).Set(float64(size))
	if n > 0 {
		CacheEvictions.WithLabelValues(string(t.name)).Add(float64(n))
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (t *Tier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
