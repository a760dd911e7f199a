package cache

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewViewCache),
	fx.Provide(provideRevalidator),
)

type revalidatorParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Local     *ViewCache
	Redis     *redis.Client `optional:"true"`
	Log       *zap.Logger
}

// provideRevalidator fans revalidations out over redis when a client is
// configured and falls back to the in-process view cache otherwise.
func provideRevalidator(p revalidatorParams) Revalidator {
	if p.Redis == nil {
		return p.Local
	}

	r := NewRedisRevalidator(p.Redis, p.Local, p.Log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.log.Error("revalidation subscriber stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return r
}
