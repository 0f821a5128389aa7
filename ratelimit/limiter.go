package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-outbound/core"
)

// CounterStore is the shared counter the limiter increments. Increment must
// be atomic at the store: it creates the counter with ttl as its expiry when
// the key is absent, bumps it otherwise, and returns the post-increment
// value. There is no read-then-write window for callers to race through.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type LimitExceededError struct {
	Key   string
	Limit int
	Count int64
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf(
		"ratelimit: key %q exceeded limit %d with count %d",
		strings.TrimSpace(e.Key),
		e.Limit,
		e.Count,
	)
}

func (e LimitExceededError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.OutboundErrorRateLimited).
		WithMetadata(map[string]any{
			"key":   strings.TrimSpace(e.Key),
			"limit": e.Limit,
			"count": e.Count,
		})
}

// FixedWindowLimiter counts calls per key inside fixed windows that reset at
// expiry boundaries. Bursts straddling a boundary can briefly double the
// nominal rate; that is a known characteristic of the model, not a bug.
type FixedWindowLimiter struct {
	Store CounterStore
}

func NewFixedWindowLimiter(store CounterStore) *FixedWindowLimiter {
	return &FixedWindowLimiter{Store: store}
}

// Check increments the counter for key and fails once the window count
// exceeds limit. The counter is incremented even on the failing call. When
// enabled is false the store is never touched.
func (l *FixedWindowLimiter) Check(ctx context.Context, key string, limit int, window time.Duration, enabled bool) error {
	if !enabled {
		return nil
	}
	if l == nil || l.Store == nil {
		return fmt.Errorf("ratelimit: counter store is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("ratelimit: key is required")
	}

	count, err := l.Store.Increment(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return LimitExceededError{Key: key, Limit: limit, Count: count}
	}
	return nil
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is the single-process fallback backend: a mutex-guarded
// map of counters with lazy expiry.
type MemoryCounterStore struct {
	mu    sync.Mutex
	items map[string]memoryCounter

	Now func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		items: map[string]memoryCounter{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("ratelimit: counter store is nil")
	}
	key = strings.TrimSpace(key)
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = memoryCounter{count: 0, expiresAt: now.Add(ttl)}
	}
	entry.count++
	s.items[key] = entry
	return entry.count, nil
}

func (s *MemoryCounterStore) clock() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
