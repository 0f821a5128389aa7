package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryCounterStore())

	for i := 0; i < 3; i++ {
		if err := limiter.Check(context.Background(), "test_key", 3, time.Minute, true); err != nil {
			t.Fatalf("call %d under limit: %v", i+1, err)
		}
	}

	err := limiter.Check(context.Background(), "test_key", 3, time.Minute, true)
	if err == nil {
		t.Fatalf("expected limit exceeded on call 4")
	}
	var limitErr LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError, got %T", err)
	}
	if limitErr.Count != 4 {
		t.Fatalf("expected failing call to still increment, got count %d", limitErr.Count)
	}
}

func TestFixedWindowLimiter_ResetsAfterWindow(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0).UTC()
	store.Now = func() time.Time { return now }
	limiter := NewFixedWindowLimiter(store)

	for i := 0; i < 3; i++ {
		if err := limiter.Check(context.Background(), "test_key", 3, time.Minute, true); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if err := limiter.Check(context.Background(), "test_key", 3, time.Minute, true); err == nil {
		t.Fatalf("expected limit exceeded inside window")
	}

	now = now.Add(time.Minute + time.Second)
	if err := limiter.Check(context.Background(), "test_key", 3, time.Minute, true); err != nil {
		t.Fatalf("expected fresh window after expiry, got %v", err)
	}
}

func TestFixedWindowLimiter_IsolatesKeys(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryCounterStore())

	for i := 0; i < 3; i++ {
		if err := limiter.Check(context.Background(), "key_a", 3, time.Minute, true); err != nil {
			t.Fatalf("key_a call %d: %v", i+1, err)
		}
	}

	if err := limiter.Check(context.Background(), "key_b", 3, time.Minute, true); err != nil {
		t.Fatalf("expected key_b unaffected by key_a, got %v", err)
	}
}

func TestFixedWindowLimiter_BypassWhenDisabled(t *testing.T) {
	store := &countingStore{}
	limiter := NewFixedWindowLimiter(store)

	for i := 0; i < 100; i++ {
		if err := limiter.Check(context.Background(), "test_key", 1, time.Minute, false); err != nil {
			t.Fatalf("disabled check %d: %v", i+1, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("expected bypass to never touch the store, got %d calls", store.calls)
	}
}

func TestLimitExceededError_ServiceEnvelope(t *testing.T) {
	svcErr := LimitExceededError{Key: "sms_send:usr_1", Limit: 10, Count: 11}.ToServiceError()

	if svcErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 envelope, got %d", svcErr.Code)
	}
	if svcErr.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", svcErr.Category)
	}
	if svcErr.Metadata["limit"] != 10 {
		t.Fatalf("expected limit metadata, got %#v", svcErr.Metadata)
	}
}

func TestMemoryCounterStore_ExpiryIsPerKey(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0).UTC()
	store.Now = func() time.Time { return now }

	if _, err := store.Increment(context.Background(), "short", time.Second); err != nil {
		t.Fatalf("increment short: %v", err)
	}
	if _, err := store.Increment(context.Background(), "long", time.Hour); err != nil {
		t.Fatalf("increment long: %v", err)
	}

	now = now.Add(2 * time.Second)
	count, err := store.Increment(context.Background(), "short", time.Second)
	if err != nil {
		t.Fatalf("increment short after expiry: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected short counter to reset, got %d", count)
	}
	count, err = store.Increment(context.Background(), "long", time.Hour)
	if err != nil {
		t.Fatalf("increment long: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected long counter to keep counting, got %d", count)
	}
}

type countingStore struct {
	calls int
}

func (s *countingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	s.calls++
	return int64(s.calls), nil
}
