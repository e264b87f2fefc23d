// Package ratelimit implements fixed-window attempt limiting per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// bucket tracks attempts for a single client within one window
type bucket struct {
	count   int
	resetAt time.Time
}

// sweepEvery is how many checks pass between full sweeps of expired buckets
const sweepEvery = 256

// MemoryLimiter keeps buckets in a mutex-guarded map. Expired buckets count as
// absent on lookup and are swept periodically to bound memory.
type MemoryLimiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	checks  uint64
}

// NewMemoryLimiter allows maxAttempts per window for each key
func NewMemoryLimiter(maxAttempts int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
		buckets:     make(map[string]*bucket),
	}
}

var _ ports.RateLimiter = (*MemoryLimiter)(nil)

// Check counts one attempt for clientKey
func (l *MemoryLimiter) Check(_ context.Context, clientKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.checks++
	if l.checks%sweepEvery == 0 {
		l.sweep(now)
	}

	b, ok := l.buckets[clientKey]
	if !ok || !now.Before(b.resetAt) {
		l.buckets[clientKey] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return nil
	}

	b.count++
	if b.count > l.maxAttempts {
		return &core.RateLimitError{RetryAfter: b.resetAt.Sub(now)}
	}
	return nil
}

// Len reports the number of live buckets
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}
