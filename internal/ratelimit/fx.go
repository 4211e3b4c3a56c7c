package ratelimit

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/redis/go-redis/v9"

	"github.com/equipqr/equipqr/internal/config"
)

// Module provides the redis client, webhook rate limiter and job
// locker. An empty redis address leaves the client nil and every
// consumer degrades open.
var Module = fx.Module("ratelimit",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) *redis.Client {
			if cfg.RedisAddr == "" {
				log.Warn("redis not configured, rate limiting and job locks disabled")
				return nil
			}
			return redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})
		},
		func(rdb *redis.Client, log *zap.Logger) *Limiter {
			// Webhook deliveries are bursty on subscription changes.
			return NewLimiter(rdb, 20, 60, "webhook", log)
		},
		NewLocker,
	),
)
