package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-api/internal/config"
)

// ErrNotConfigured is returned by health checks of disabled dependencies.
var ErrNotConfigured = errors.New("not configured")

// Redis backs the shared login throttle. Timeouts are short because the
// throttle fails open and must not stall a login.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a client, or returns nil when no address is configured.
// An unreachable server is logged, not fatal.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set; login throttling stays in process")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; throttle will fail open until it recovers",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{client: client}
}

// Client exposes the go-redis client.
func (r *Redis) Client() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

func (r *Redis) Close() {
	if r.Client() != nil {
		_ = r.client.Close()
	}
}

// Ping is the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client() == nil {
		return ErrNotConfigured
	}
	return r.client.Ping(ctx).Err()
}
