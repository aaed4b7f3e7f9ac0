package cache

import (
	"time"
)

// Entry is a value stored in a tier together with its write time and TTL.
type Entry struct {
	// Key is the opaque cache key.
	Key string

	// Value is the cached payload.
	Value any

	// WrittenAt is when Set stored the value.
	WrittenAt time.Time

	// TTL is how long the value stays live after WrittenAt.
	TTL time.Duration
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// IsExpired reports whether the entry is past its TTL at now.
func (e Entry) IsExpired(now time.Time) bool {
	return e.Age(now) >= e.TTL
}

// ExpiresAt returns the instant the entry stops being live.
func (e Entry) ExpiresAt() time.Time {
	return e.WrittenAt.Add(e.TTL)
}
