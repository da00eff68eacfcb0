package service

import (
	"context"
	"math"
	"sync"
	"time"
)

// bucketIdleTTL is how long an untouched bucket is kept before cleanup.
const bucketIdleTTL = 10 * time.Minute

// RateLimiter throttles requests per key with a token bucket. Each key starts
// full and refills continuously. It is safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64
	clock    Clock
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing bursts of capacity requests and
// refilling rate tokens per second. Idle buckets are swept until ctx ends.
func NewRateLimiter(ctx context.Context, rate, capacity float64) *RateLimiter {
	rl := newRateLimiter(rate, capacity, SystemClock)
	go rl.sweep(ctx, bucketIdleTTL/2)
	return rl
}

func newRateLimiter(rate, capacity float64, clock Clock) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		clock:    clock,
	}
}

func (rl *RateLimiter) refill(key string) *bucket {
	now := rl.clock.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, last: now}
		rl.buckets[key] = b
		return b
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*rl.rate, rl.capacity)
	b.last = now
	return b
}

// Allow consumes one token for key and reports whether one was available.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(key)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter estimates how long key must wait for its next token. It does
// not consume anything.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(key)
	if b.tokens >= 1 {
		return 0
	}
	if rl.rate <= 0 {
		return bucketIdleTTL
	}
	return time.Duration(math.Ceil((1-b.tokens)/rl.rate*1000)) * time.Millisecond
}

func (rl *RateLimiter) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.clock.Now().Add(-bucketIdleTTL)
	evicted := 0
	for key, b := range rl.buckets {
		if b.last.Before(cutoff) {
			delete(rl.buckets, key)
			evicted++
		}
	}
	return evicted
}
