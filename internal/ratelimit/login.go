package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"go.uber.org/zap"
)

const keyLoginAttempt = "login:attempt:%s"

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error)
}

// LoginLimiter throttles credential sign-in attempts per client address.
// Rate and burst are read from the dashboard config on every call so a
// reload applies immediately.
type LoginLimiter struct {
	bucket    bucket
	dashboard *config.DashboardHolder
	log       *zap.Logger
}

func NewLoginLimiter(client *redis.Client, dashboard *config.DashboardHolder, log *zap.Logger) *LoginLimiter {
	var b bucket = NewMemoryBucket()
	if client != nil {
		b = NewTokenBucket(client)
	}
	return &LoginLimiter{
		bucket:    b,
		dashboard: dashboard,
		log:       log.Named("ratelimit.login"),
	}
}

// Allow fails open when the backing store errors; a redis outage must not
// lock every user out.
func (l *LoginLimiter) Allow(ctx context.Context, clientAddr string) *RateLimitResult {
	cfg := l.dashboard.Get().Login
	key := fmt.Sprintf(keyLoginAttempt, strings.TrimSpace(clientAddr))

	res, err := l.bucket.Allow(ctx, key, cfg.Rate, cfg.Burst)
	if err != nil {
		l.log.Warn("login rate limit check failed", zap.Error(err))
		return &RateLimitResult{Allowed: true, Limit: cfg.Burst}
	}
	return res
}
