package ratelimit

import (
	"context"
	"sort"
	"sync"
)

// Store persists rate limit records by (user, endpoint).
type Store interface {
	// FindByKey returns the record for the pair or ErrRecordNotFound.
	FindByKey(ctx context.Context, userID, endpoint string) (*Record, error)

	// Upsert creates or replaces the record for its pair.
	Upsert(ctx context.Context, rec *Record) error
}

// FlaggedLister is implemented by stores that can list flagged callers.
type FlaggedLister interface {
	Flagged(ctx context.Context) ([]Record, error)
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// FindByKey implements Store.
func (s *MemoryStore) FindByKey(ctx context.Context, userID, endpoint string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(userID, endpoint)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(rec.UserID, rec.Endpoint)] = *rec
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Flagged lists flagged records, most recent request first.
func (s *MemoryStore) Flagged(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0)
	for _, rec := range s.records {
		if rec.IsFlagged {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastRequestAt.After(out[j].LastRequestAt) })
	return out, nil
}
