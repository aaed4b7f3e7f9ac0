package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis hash fields of a record.
const (
	fieldWindowStart   = "window_start"
	fieldRequestCount  = "request_count"
	fieldIsFlagged     = "is_flagged"
	fieldLastRequestAt = "last_request_at"
)

// RedisStore keeps records as Redis hashes under nse:ratelimit:<user>:<endpoint>,
// with "%" and ":" percent-escaped inside user and endpoint.
// Times are stored as unix nanoseconds.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

// FindByKey implements Store.
func (s *RedisStore) FindByKey(ctx context.Context, userID, endpoint string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, recordKey(userID, endpoint)).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}

	windowStart, err := strconv.ParseInt(fields[fieldWindowStart], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldWindowStart, err)
	}
	count, err := strconv.Atoi(fields[fieldRequestCount])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldRequestCount, err)
	}
	lastRequest, err := strconv.ParseInt(fields[fieldLastRequestAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldLastRequestAt, err)
	}

	return &Record{
		UserID:        userID,
		Endpoint:      endpoint,
		WindowStart:   time.Unix(0, windowStart),
		RequestCount:  count,
		IsFlagged:     fields[fieldIsFlagged] == "1",
		LastRequestAt: time.Unix(0, lastRequest),
	}, nil
}

// Upsert implements Store.
func (s *RedisStore) Upsert(ctx context.Context, rec *Record) error {
	flagged := "0"
	if rec.IsFlagged {
		flagged = "1"
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, recordKey(rec.UserID, rec.Endpoint), map[string]any{
		fieldWindowStart:   rec.WindowStart.UnixNano(),
		fieldRequestCount:  rec.RequestCount,
		fieldIsFlagged:     flagged,
		fieldLastRequestAt: rec.LastRequestAt.UnixNano(),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit record in redis: %w", err)
	}
	return nil
}
