package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBucketExhaustsBurst(t *testing.T) {
	bucket := NewMemoryBucket()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(context.Background(), "k", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
	}

	res, err := bucket.Allow(context.Background(), "k", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, time.Second, res.RetryAfter)

	now = now.Add(time.Second)
	res, err = bucket.Allow(context.Background(), "k", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryBucketConcurrentFirstAttemptsShareBurst(t *testing.T) {
	bucket := NewMemoryBucket()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket.now = func() time.Time { return now }

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := bucket.Allow(context.Background(), "10.0.0.1", 0.01, 5)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestMemoryBucketRejectsBadInput(t *testing.T) {
	bucket := NewMemoryBucket()

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)

	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
}

func TestLoginLimiterUsesDashboardBurst(t *testing.T) {
	cfg := config.DefaultDashboardConfig()
	cfg.Login.Burst = 2
	cfg.Login.Rate = 0.01
	limiter := NewLoginLimiter(nil, config.NewStaticDashboardHolder(cfg), zap.NewNop())

	ctx := context.Background()
	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.False(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.True(t, limiter.Allow(ctx, "10.0.0.2").Allowed)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(1, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 5))
}
