package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate limits calls per key (one key per model provider) and lets a
// caller put a key into cooldown after the upstream pushes back.
// Construct one and pass it to every client that shares the quota.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	cooldowns    map[string]time.Time
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	now          func() time.Time
}

// NewLimiter creates a new rate limiter.
// A non-positive rate disables limiting (cooldowns still apply).
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		cooldowns:    make(map[string]time.Time),
		defaultRate:  limit,
		defaultBurst: burst,
		now:          time.Now,
	}
}

// Wait blocks until key is out of cooldown and a token is available
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if remaining := l.CooldownRemaining(key); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if a call is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	if l.CooldownRemaining(key) > 0 {
		return false
	}
	return l.getLimiter(key).Allow()
}

// Cooldown blocks key for at least d. An existing longer cooldown is kept.
func (l *Limiter) Cooldown(key string, d time.Duration) {
	if d <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(d)
	if until.After(l.cooldowns[key]) {
		l.cooldowns[key] = until
	}
}

// CooldownRemaining returns how long key stays blocked
func (l *Limiter) CooldownRemaining(key string) time.Duration {
	l.mu.RLock()
	until, ok := l.cooldowns[key]
	l.mu.RUnlock()

	if !ok {
		return 0
	}
	remaining := until.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// getLimiter returns the rate limiter for a key
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}
