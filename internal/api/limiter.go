package api

import (
	"context"
	"sync"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/metrics"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// routeLimiter keeps one token bucket per route so a burst of list calls
// cannot starve the booking calls. A zero RPS disables limiting.
type routeLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newRouteLimiter(cfg config.APIRateLimitConfig) *routeLimiter {
	l := &routeLimiter{
		limit:   rate.Inf,
		burst:   cfg.Burst,
		buckets: make(map[string]*rate.Limiter),
	}
	if cfg.RPS > 0 {
		l.limit = rate.Limit(cfg.RPS)
	}
	if l.burst <= 0 {
		l.burst = defaultBurst
	}
	return l
}

func (l *routeLimiter) bucket(route string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[route]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[route] = b
	}
	return b
}

// wait blocks until route may be called or ctx ends.
func (l *routeLimiter) wait(ctx context.Context, route string) error {
	if l.limit == rate.Inf {
		return nil
	}
	start := time.Now()
	if err := l.bucket(route).Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(route, waited)
	}
	return nil
}
