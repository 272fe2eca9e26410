package api

import (
	"sync"
	"time"

	"fieldbook/internal/config"

	"golang.org/x/time/rate"
)

const (
	defaultBurst   = 5
	limiterIdleTTL = 10 * time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key. Buckets unused for
// limiterIdleTTL are dropped on the next sweep.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RPS),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *rateLimiter) enabled() bool {
	return l.limit > 0
}

// allow reports whether the client identified by key may proceed.
func (l *rateLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}

	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		l.sweep(now)
	}
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

func (l *rateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
