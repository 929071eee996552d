package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("fourth request in the window should be rejected")
	}

	// Different key has its own window
	allowed, _ = l.Allow(ctx, "10.0.0.2")
	if !allowed {
		t.Error("different client should not share the window")
	}
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	l := NewMemoryLimiter(1, 10*time.Millisecond)
	ctx := context.Background()

	if allowed, _ := l.Allow(ctx, "k"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := l.Allow(ctx, "k"); allowed {
		t.Fatal("second request inside window should be rejected")
	}

	time.Sleep(15 * time.Millisecond)

	if allowed, _ := l.Allow(ctx, "k"); !allowed {
		t.Error("request after window reset should be allowed")
	}
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("third request in the window should be rejected")
	}

	// Window expiry clears the counter
	mr.FastForward(2 * time.Minute)

	allowed, err = l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow after expiry: %v", err)
	}
	if !allowed {
		t.Error("request after window expiry should be allowed")
	}
}
