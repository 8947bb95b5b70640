package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/workledger/authcore/internal/domain"
)

// RateLimiter tracks a token bucket per client key. The bucket holds the
// full per-window quota as burst and refills at quota/window, so quota
// back-to-back requests pass and request quota+1 inside one window does not.
// Counters live in memory and reset on restart.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
	window   time.Duration
}

// NewRateLimiter creates a limiter granting quota requests per window for
// each distinct key.
func NewRateLimiter(quota int, window time.Duration) *RateLimiter {
	if quota < 1 {
		quota = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(float64(quota) / window.Seconds()),
		burst:    quota,
		window:   window,
	}
}

// GetLimiter returns the bucket for the given key (client IP, username, etc.)
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter
}

// Allow reports whether one more request from key fits the quota.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// CheckLimit checks the quota and returns domain.ErrRateLimited when exceeded.
func (rl *RateLimiter) CheckLimit(key string) error {
	if !rl.Allow(key) {
		return domain.ErrRateLimited
	}
	return nil
}

// RetryAfter is the hint reported with a rejection. The bucket refills
// continuously, so one token's worth of wait is enough to try again.
func (rl *RateLimiter) RetryAfter() time.Duration {
	if rl.rps <= 0 {
		return rl.window
	}
	d := time.Duration(float64(time.Second) / float64(rl.rps))
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Cleanup removes old limiters to prevent memory leaks.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Simple cleanup: clear all if the map gets too large.
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanupWorker runs Cleanup on a ticker until the context ends.
func (rl *RateLimiter) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}
