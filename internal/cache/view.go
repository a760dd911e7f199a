package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	"go.uber.org/zap"
)

// Revalidator marks every cached view under a route path as stale so the
// next read recomputes it.
type Revalidator interface {
	Revalidate(ctx context.Context, path string)
}

// ViewCache keeps computed listing payloads keyed by route path and query.
// Every revalidation bumps a generation so a read that started before it
// cannot store its snapshot afterwards.
type ViewCache struct {
	mu         sync.Mutex
	generation uint64

	entries *TTLCache[string, any]
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewViewCache(log *zap.Logger, m *metrics.Metrics) *ViewCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewCache{
		entries: NewTTLCache[string, any](),
		log:     log.Named("cache.view"),
		metrics: m,
	}
}

// ViewKey builds the cache key for a route path and its query parameters.
func ViewKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func (v *ViewCache) Get(key string) (any, bool) {
	return v.entries.Get(key)
}

func (v *ViewCache) Set(key string, value any, ttl time.Duration) {
	v.entries.Set(key, value, ttl)
}

// Generation is read before computing a view and passed to SetIfGeneration.
func (v *ViewCache) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// SetIfGeneration stores value only when no revalidation happened since gen
// was read.
func (v *ViewCache) SetIfGeneration(key string, value any, ttl time.Duration, gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return false
	}
	v.entries.Set(key, value, ttl)
	return true
}

func (v *ViewCache) Revalidate(ctx context.Context, path string) {
	removed := v.drop(path)
	v.log.Debug("views revalidated", zap.String("path", path), zap.Int("removed", removed))
	v.metrics.RecordRevalidation(ctx, path)
}

func (v *ViewCache) drop(path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++

	path = strings.TrimRight(path, "/")
	return v.entries.DeleteFunc(func(key string) bool {
		return key == path ||
			strings.HasPrefix(key, path+"?") ||
			strings.HasPrefix(key, path+"/")
	})
}

var _ Revalidator = (*ViewCache)(nil)
