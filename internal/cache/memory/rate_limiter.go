package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// maxLimiters bounds the number of tracked keys before idle ones are evicted.
const maxLimiters = 10_000

type keyedLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket refills limit tokens per window and holds at most limit tokens.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	idle     time.Duration
}

// NewRateLimiter creates an empty RateLimiter. Keys unused for longer than
// idle are evicted once the key count grows large.
func NewRateLimiter(idle time.Duration) *RateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*keyedLimiter),
		idle:     idle,
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kl, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.evictLocked(now)
		}
		kl = &keyedLimiter{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		rl.limiters[key] = kl
	}
	kl.lastSeen = now
	return kl.lim.AllowN(now, 1), nil
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	for k, kl := range rl.limiters {
		if now.Sub(kl.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
