// Package ratelimit implements the coordinator's per-identity windowed
// request counters, built on golang.org/x/time/rate token buckets. State is
// process-local and may be reset on restart without affecting correctness.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit describes one role's budget: count requests per window.
type Limit struct {
	Count  int
	Window time.Duration
}

// Limiter holds one token bucket per (role, identity) key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	resetsAt time.Time
	window   time.Duration
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether the request for key under limit is permitted, and
// if not, when the window resets. key should combine the role and the
// caller's identity (IP, runner id, ...) so roles don't share a budget.
func (l *Limiter) Allow(key string, limit Limit) (allowed bool, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok || b.window != limit.Window {
		// rate.Limit is "events per second"; spreading Count evenly across
		// Window gives a smooth-refill bucket with burst Count, matching
		// "N requests per window" rather than "N requests, then hard stop".
		perSecond := rate.Limit(float64(limit.Count) / limit.Window.Seconds())
		b = &bucket{
			limiter:  rate.NewLimiter(perSecond, limit.Count),
			resetsAt: now.Add(limit.Window),
			window:   limit.Window,
		}
		l.buckets[key] = b
	}
	if now.After(b.resetsAt) {
		b.resetsAt = now.Add(limit.Window)
	}
	return b.limiter.Allow(), b.resetsAt
}
