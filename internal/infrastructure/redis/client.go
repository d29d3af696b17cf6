package redis

import (
	"context"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/internal/config"
	"github.com/fastygo/svckit/pkg/dbconn"
)

// NewClient creates a Redis client and performs a health check.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

type pool struct {
	client *goRedis.Client
	logger *zap.Logger
}

// WrapClient exposes a Redis client through the resolver's Pool interface.
// The client multiplexes its own connection pool, so release is a no-op.
func WrapClient(client *goRedis.Client, logger *zap.Logger) dbconn.Pool[goRedis.Cmdable] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return pool{client: client, logger: logger}
}

func (p pool) Acquire(context.Context) (goRedis.Cmdable, func(), error) {
	return p.client, func() {}, nil
}

func (p pool) Close() {
	if err := p.client.Close(); err != nil {
		p.logger.Warn("redis close failed", zap.Error(err))
	}
}

// Opener connects to Redis on first use.
func Opener(cfg config.RedisConfig, logger *zap.Logger) dbconn.Opener[goRedis.Cmdable] {
	return func(ctx context.Context) (dbconn.Pool[goRedis.Cmdable], error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("REDIS_URL is not set")
		}
		client, err := NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Info("connected to redis", zap.String("addr", client.Options().Addr))
		}
		return WrapClient(client, logger), nil
	}
}

// NewResolver returns the lazily initialized Redis resolver.
func NewResolver(cfg config.RedisConfig, logger *zap.Logger, opts ...dbconn.Option) *dbconn.Resolver[goRedis.Cmdable] {
	opts = append([]dbconn.Option{dbconn.WithName("redis"), dbconn.WithLogger(logger)}, opts...)
	return dbconn.New(Opener(cfg, logger), opts...)
}
