package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memCounters struct {
	mu      sync.Mutex
	counts  map[string]int64
	blocked map[string]time.Duration
	err     error
}

func newMemCounters() *memCounters {
	return &memCounters{counts: map[string]int64{}, blocked: map[string]time.Duration{}}
}

func (m *memCounters) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounters) Block(_ context.Context, key string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[key] = d
	return nil
}

func (m *memCounters) BlockedFor(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.blocked[key], nil
}

func TestLimiter_AllowsUpToMaxThenBlocks(t *testing.T) {
	store := newMemCounters()
	l := newLimiter(store, "login", 3, time.Minute, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "ip:10.0.0.1")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("Allow #%d: blocked too early", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("Allow #%d: Remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}

	d, err := l.Allow(ctx, "ip:10.0.0.1")
	if err != nil {
		t.Fatalf("Allow over limit: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth call should be blocked")
	}
	if d.RetryAfter != 5*time.Minute {
		t.Errorf("RetryAfter = %v, want 5m", d.RetryAfter)
	}
	if _, ok := store.blocked["login:ip:10.0.0.1:blocked"]; !ok {
		t.Error("block key not set")
	}

	// Blocked keys short-circuit before counting.
	before := store.counts["login:ip:10.0.0.1"]
	if d, _ := l.Allow(ctx, "ip:10.0.0.1"); d.Allowed {
		t.Error("blocked key should stay blocked")
	}
	if store.counts["login:ip:10.0.0.1"] != before {
		t.Error("blocked call should not increment the counter")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := newLimiter(newMemCounters(), "login", 1, time.Minute, time.Minute)
	ctx := context.Background()
	if d, _ := l.Allow(ctx, "a"); !d.Allowed {
		t.Fatal("first call for a should pass")
	}
	if d, _ := l.Allow(ctx, "b"); !d.Allowed {
		t.Fatal("first call for b should pass")
	}
	if d, _ := l.Allow(ctx, "a"); d.Allowed {
		t.Fatal("second call for a should be blocked")
	}
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	store := newMemCounters()
	store.err = errors.New("connection refused")
	l := newLimiter(store, "login", 1, time.Minute, time.Minute)

	d, err := l.Allow(context.Background(), "a")
	if err == nil {
		t.Fatal("expected store error to be reported")
	}
	if !d.Allowed {
		t.Error("store errors must not block traffic")
	}
}

func TestLimiter_NilAllows(t *testing.T) {
	var l *Limiter
	d, err := l.Allow(context.Background(), "a")
	if err != nil || !d.Allowed {
		t.Fatalf("nil limiter = %+v, %v", d, err)
	}
}
