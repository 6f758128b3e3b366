// Package ratelimit implements a token bucket limiter keyed by user.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-user rate limits. Buckets are created on first use and
// retained for the process lifetime; the user population is bounded by the
// subscriber base, so no eviction is needed.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// Config holds rate limiter configuration.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Allow reports whether the user may proceed, consuming a token if so.
// Requests over the limit are rejected rather than queued so slow captures
// don't pile up behind the bucket.
func (l *Limiter) Allow(userID string) bool {
	return l.bucket(userID).Allow()
}

func (l *Limiter) bucket(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[userID] = limiter
	}
	return limiter
}
