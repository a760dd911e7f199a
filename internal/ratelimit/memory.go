package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/cache"
	"golang.org/x/time/rate"
)

// MemoryBucket is the single-instance fallback when redis is not configured.
// Idle limiters expire after they would have refilled completely.
type MemoryBucket struct {
	limiters *cache.TTLCache[string, *rate.Limiter]
	now      func() time.Time
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		limiters: cache.NewTTLCache[string, *rate.Limiter](),
		now:      time.Now,
	}
}

func (m *MemoryBucket) Allow(_ context.Context, key string, r float64, burst int) (*RateLimitResult, error) {
	if key == "" {
		return &RateLimitResult{Allowed: false}, errors.New("rate limiter key is empty")
	}
	if r <= 0 || burst <= 0 {
		return &RateLimitResult{Allowed: false}, errors.New("rate limiter rate and burst must be positive")
	}

	limiter := m.limiters.Upsert(key, defaultBucketTTL(r, burst), func(current *rate.Limiter, found bool) *rate.Limiter {
		if found && current.Burst() == burst && float64(current.Limit()) == r {
			return current
		}
		return rate.NewLimiter(rate.Limit(r), burst)
	})

	now := m.now()
	allowed := limiter.AllowN(now, 1)
	return buildResult(allowed, limiter.TokensAt(now), r, burst, now), nil
}
