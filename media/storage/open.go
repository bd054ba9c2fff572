package storage

import (
	"context"
	"fmt"

	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/redis_client"
)

// Disk names accepted by Open.
const (
	DiskLocal  = "local"
	DiskOSS    = "oss"
	DiskRedis  = "redis"
	DiskMemory = "memory"
)

// Config holds the settings of every backend; Open uses the one disk names.
type Config struct {
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
	Redis RedisConfig `mapstructure:"redis" json:"redis" yaml:"redis"`
	Retry RetryConfig `mapstructure:"retry" json:"retry" yaml:"retry"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path" yaml:"base_path" default:"storage"`
}

// Open creates the store for disk wrapped in Retrying. The returned close
// function releases backend connections.
func Open(ctx context.Context, disk string, cfg Config, logger logging.Logger) (BlobStore, func() error, error) {
	noop := func() error { return nil }

	var (
		store   BlobStore
		closeFn = noop
	)
	switch disk {
	case DiskLocal, "":
		local, err := NewLocalStore(cfg.Local.BasePath)
		if err != nil {
			return nil, nil, err
		}
		store = local
	case DiskOSS:
		oss, err := NewOSSStore(cfg.OSS)
		if err != nil {
			return nil, nil, err
		}
		store = oss
	case DiskRedis:
		client, err := redis_client.NewRedis(ctx, cfg.Redis.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		store = NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		closeFn = client.Close
	case DiskMemory:
		store = NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unsupported storage disk: %s", disk)
	}

	return NewRetrying(store, cfg.Retry, logger), closeFn, nil
}
