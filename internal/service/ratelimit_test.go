package service

import (
	"context"
	"testing"
	"time"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	rl := newRateLimiter(1, 3, &manualClock{now: time.Unix(0, 0)})

	for i := range 3 {
		if !rl.Allow("member-1") {
			t.Fatalf("request %d should be allowed (bucket not yet empty)", i+1)
		}
	}
	if rl.Allow("member-1") {
		t.Fatal("4th request should be denied (bucket empty)")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newRateLimiter(1, 1, &manualClock{now: time.Unix(0, 0)})

	if !rl.Allow("ip-a") {
		t.Fatal("ip-a first request should be allowed")
	}
	if rl.Allow("ip-a") {
		t.Fatal("ip-a second request should be denied")
	}
	if !rl.Allow("ip-b") {
		t.Fatal("ip-b has its own bucket")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	rl := newRateLimiter(2, 1, clock)

	if !rl.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("k") {
		t.Fatal("second request should be denied")
	}
	if got := rl.RetryAfter("k"); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms retry hint, got %s", got)
	}

	clock.now = clock.now.Add(500 * time.Millisecond)
	if !rl.Allow("k") {
		t.Fatal("request after refill should be allowed")
	}
}

func TestRateLimiter_ZeroRateNeverRefills(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	rl := newRateLimiter(0, 2, clock)

	rl.Allow("k")
	rl.Allow("k")
	clock.now = clock.now.Add(time.Hour)
	if rl.Allow("k") {
		t.Fatal("third request should be denied (no refill)")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	rl := newRateLimiter(1, 1, clock)
	rl.Allow("old")
	clock.now = clock.now.Add(bucketIdleTTL + time.Second)
	rl.Allow("fresh")

	if n := rl.evictIdle(); n != 1 {
		t.Fatalf("expected 1 evicted bucket, got %d", n)
	}
	if !rl.Allow("old") {
		t.Fatal("evicted key should start full again")
	}
}

func TestNewRateLimiter_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rl := NewRateLimiter(ctx, 1, 1)
	cancel()
	if !rl.Allow("k") {
		t.Fatal("expected first request to be allowed")
	}
}
