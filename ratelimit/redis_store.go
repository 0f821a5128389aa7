package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterKeyPrefix = "outbound::rate_limit::"

// RedisCounterStore backs the limiter with a shared networked counter so
// limits hold across worker processes. The INCR and first-write expiry run in
// a single transactional pipeline; EXPIRE NX leaves an existing window's
// deadline untouched.
type RedisCounterStore struct {
	client redis.UniversalClient
}

func NewRedisCounterStore(ctx context.Context, redisURL string) (*RedisCounterStore, error) {
	trimmed := strings.TrimSpace(redisURL)
	if trimmed == "" {
		return nil, fmt.Errorf("ratelimit: redis url is required")
	}
	options, err := redis.ParseURL(trimmed)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	options.DialTimeout = 2 * time.Second
	options.ReadTimeout = time.Second
	options.WriteTimeout = time.Second
	options.MaxRetries = 1

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: redis ping failed: %w", err)
	}
	return &RedisCounterStore{client: client}, nil
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("ratelimit: redis counter store is not configured")
	}
	namespaced := counterKeyPrefix + strings.TrimSpace(key)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, namespaced)
	pipe.ExpireNX(ctx, namespaced, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: increment %q: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisCounterStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// NewCounterStore builds the process-wide counter backend with the documented
// fallback order: the networked store when a redis url is configured and
// reachable, the in-process store otherwise. Fallback happens here at
// construction, never at call time.
func NewCounterStore(ctx context.Context, redisURL string, logger interface{ Warn(string, ...any) }) CounterStore {
	trimmed := strings.TrimSpace(redisURL)
	if trimmed == "" {
		return NewMemoryCounterStore()
	}
	store, err := NewRedisCounterStore(ctx, trimmed)
	if err != nil {
		if logger != nil {
			logger.Warn("rate limit backend unreachable, using in-memory store", "error", err.Error())
		}
		return NewMemoryCounterStore()
	}
	return store
}

var (
	_ CounterStore = (*MemoryCounterStore)(nil)
	_ CounterStore = (*RedisCounterStore)(nil)
)
