package cache

import (
	"context"
	"strings"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const revalidateChannel = "invoicedesk:revalidate"

// RedisRevalidator drops local views and publishes the path so every other
// instance drops its copies too.
type RedisRevalidator struct {
	client *redis.Client
	local  *ViewCache
	log    *zap.Logger
	origin string
}

func NewRedisRevalidator(client *redis.Client, local *ViewCache, log *zap.Logger) *RedisRevalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRevalidator{
		client: client,
		local:  local,
		log:    log.Named("cache.redis"),
		origin: uuid.NewString(),
	}
}

func (r *RedisRevalidator) Revalidate(ctx context.Context, path string) {
	r.local.Revalidate(ctx, path)

	if err := r.client.Publish(ctx, revalidateChannel, encodeMessage(r.origin, path)).Err(); err != nil {
		r.log.Warn("failed to publish revalidation", zap.String("path", path), zap.Error(err))
	}
}

// Run consumes revalidations published by other instances until ctx ends.
func (r *RedisRevalidator) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, revalidateChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, path, valid := decodeMessage(msg.Payload)
			if !valid || origin == r.origin {
				continue
			}
			removed := r.local.drop(path)
			r.log.Debug("remote revalidation", zap.String("path", path), zap.Int("removed", removed))
		}
	}
}

func encodeMessage(origin, path string) string {
	return origin + " " + path
}

func decodeMessage(payload string) (origin, path string, ok bool) {
	origin, path, ok = strings.Cut(payload, " ")
	if !ok || origin == "" || !strings.HasPrefix(path, "/") {
		return "", "", false
	}
	return origin, path, true
}

var _ Revalidator = (*RedisRevalidator)(nil)
