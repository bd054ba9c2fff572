package redis_client

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/thumbnail/logging"
)

func options(cnf Config) *redis.Options {
	return &redis.Options{
		Addr:         cnf.Addr(),
		Password:     cnf.Password,
		DB:           cnf.DB,
		PoolSize:     cnf.PoolSize,
		DialTimeout:  cnf.DialTimeout,
		ReadTimeout:  cnf.IOTimeout,
		WriteTimeout: cnf.IOTimeout,
	}
}

// NewRedis connects and pings the server within the dial timeout. The client
// is closed again when the ping fails.
func NewRedis(ctx context.Context, cnf Config) (*redis.Client, error) {
	client := redis.NewClient(options(cnf))

	pingCtx := ctx
	if cnf.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cnf.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cnf.Addr(), err)
	}

	logging.Global().Debug("redis connected", logFields(cnf)...)
	return client, nil
}

func logFields(cnf Config) []zap.Field {
	return []zap.Field{
		zap.String("addr", cnf.Addr()),
		zap.Int("db", cnf.DB),
		zap.String("password", redact(cnf.Password)),
		zap.Int("pool_size", cnf.PoolSize),
	}
}

func redact(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
