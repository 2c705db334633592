package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewMemory(0, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "k", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: got %+v", i, d)
		}
	}
	d, err := limiter.Allow(ctx, "k", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected limit reached, got %+v", d)
	}
	if !d.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected reset %v", d.ResetAt)
	}

	other, err := limiter.Allow(ctx, "other", 3, time.Minute)
	if err != nil || !other.Allowed {
		t.Fatalf("expected independent key to pass, got %+v %v", other, err)
	}

	now = now.Add(time.Minute)
	d, err = limiter.Allow(ctx, "k", 3, time.Minute)
	if err != nil || !d.Allowed || d.Remaining != 2 {
		t.Fatalf("expected fresh window, got %+v %v", d, err)
	}
}

func TestMemoryNonPositiveLimitAllows(t *testing.T) {
	limiter := NewMemory(1, nil)
	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(context.Background(), "k", 0, time.Second)
		if err != nil || !d.Allowed {
			t.Fatalf("expected unlimited, got %+v %v", d, err)
		}
	}
}

func TestMemoryCapacity(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := NewMemory(2, func() time.Time { return now })
	ctx := context.Background()
	for _, key := range []string{"a", "b"} {
		if _, err := limiter.Allow(ctx, key, 1, time.Second); err != nil {
			t.Fatalf("allow %s: %v", key, err)
		}
	}
	if _, err := limiter.Allow(ctx, "c", 1, time.Second); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	now = now.Add(time.Second)
	if _, err := limiter.Allow(ctx, "c", 1, time.Second); err != nil {
		t.Fatalf("expected sweep to free capacity, got %v", err)
	}
}

func TestRedisFixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	limiter, err := DialRedis(ctx, RedisOptions{Addr: addr}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer limiter.Close()

	key := "lendeefi:rl:test:" + uuid.NewString()
	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, key, 2, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: %+v %v", i, d, err)
		}
	}
	d, err := limiter.Allow(ctx, key, 2, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected limit reached, got %+v", d)
	}
	if !d.ResetAt.After(time.Now()) {
		t.Fatalf("expected reset in the future")
	}
}
