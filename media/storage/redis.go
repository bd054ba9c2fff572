package storage

import (
	"context"
	stderrors "errors"
	"time"

	redis "github.com/go-redis/redis/v8"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/redis_client"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	redis_client.Config `mapstructure:",squash"`
	// TTL expires entries; zero keeps them until evicted.
	TTL       time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix" json:"key_prefix" yaml:"key_prefix" default:"thumb:"`
}

// RedisStore keeps blobs as plain redis string values.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

func (s *RedisStore) Exists(ctx context.Context, p string) (bool, error) {
	key, err := s.key(p)
	if err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, apperrors.NewStorage("stat", p, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, notFound(p)
		}
		return nil, apperrors.NewStorage("read", p, err)
	}
	return data, nil
}

func (s *RedisStore) Write(ctx context.Context, p string, data []byte) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return apperrors.NewStorage("write", p, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return apperrors.NewStorage("delete", p, err)
	}
	return nil
}

func (s *RedisStore) Name() string {
	return "redis"
}
