package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marmos91/thumbgate/pkg/session"
)

// RedisStore reads Django cache sessions from Redis.
type RedisStore struct {
	lookup
	client  *redis.Client
	prefix  string
	version int
}

// NewRedisStore connects lazily; the first lookup or Ping dials.
func NewRedisStore(cfg *Config, codec session.Codec, m Metrics) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.Redis.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis uri: %w", err)
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB > 0 {
		opts.DB = cfg.Redis.DB
	}
	if cfg.Redis.PoolSize > 0 {
		opts.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		opts.DialTimeout = cfg.Redis.DialTimeout
	}

	return &RedisStore{
		lookup:  lookup{backend: string(TypeRedis), codec: codec, metrics: m},
		client:  redis.NewClient(opts),
		prefix:  cfg.KeyPrefix,
		version: cfg.KeyVersion,
	}, nil
}

func (s *RedisStore) Backend() string { return string(TypeRedis) }

func (s *RedisStore) Resolve(ctx context.Context, cookie string) (string, error) {
	return s.resolve(ctx, cookie, s.fetcher(cookie))
}

func (s *RedisStore) Connector(ctx context.Context, cookie string) (*session.Connector, error) {
	if cookie == "" {
		return nil, ErrNotFound
	}
	return s.connector(ctx, s.fetcher(cookie))
}

// fetcher checks out a dedicated connection for the single GET and returns
// it to the pool on every path.
func (s *RedisStore) fetcher(cookie string) fetchFunc {
	key := CacheKey(s.prefix, s.version, cookie)
	return func(ctx context.Context) ([]byte, error) {
		conn := s.client.Conn()
		defer conn.Close()

		blob, err := conn.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return blob, nil
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
