// Package ratelimit throttles unauthenticated credential endpoints with a Redis fixed-window counter.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// counterStore is the subset of Redis the limiter needs.
type counterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Block(ctx context.Context, key string, d time.Duration) error
	BlockedFor(ctx context.Context, key string) (time.Duration, error)
}

// Limiter allows at most Max calls per key per Window. A key that goes over is blocked for Block.
type Limiter struct {
	store  counterStore
	prefix string
	max    int
	window time.Duration
	block  time.Duration
}

// NewRedisLimiter returns a Limiter backed by the Redis server at addr.
func NewRedisLimiter(addr, password, prefix string, limit int, window, block time.Duration) (*Limiter, *redis.Client) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return newLimiter(redisStore{client: rdb}, prefix, limit, window, block), rdb
}

func newLimiter(store counterStore, prefix string, limit int, window, block time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{store: store, prefix: prefix, max: limit, window: window, block: block}
}

// Allow counts one call for key. On store errors it returns an allowed decision along with the error
// so callers can fail open and still log.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	counterKey := l.prefix + ":" + key
	blockKey := counterKey + ":blocked"

	ttl, err := l.store.BlockedFor(ctx, blockKey)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if ttl > 0 {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	count, err := l.store.Incr(ctx, counterKey, l.window)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if count > int64(l.max) {
		if err := l.store.Block(ctx, blockKey, l.block); err != nil {
			return Decision{Allowed: false, RetryAfter: l.block}, err
		}
		return Decision{Allowed: false, RetryAfter: l.block}, nil
	}
	return Decision{Allowed: true, Remaining: l.max - int(count)}, nil
}

type redisStore struct {
	client redis.UniversalClient
}

func (s redisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	cnt, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if cnt == 1 {
		_ = s.client.Expire(ctx, key, window).Err()
	}
	return cnt, nil
}

func (s redisStore) Block(ctx context.Context, key string, d time.Duration) error {
	return s.client.Set(ctx, key, "1", d).Err()
}

func (s redisStore) BlockedFor(ctx context.Context, key string) (time.Duration, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v != "1" {
		return 0, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		// Key without expiry or expiring right now; treat as a minimal block.
		return time.Second, nil
	}
	return ttl, nil
}
