// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"geoincra-portal/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the connection behind the shared municipality cache.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis accepts either host:port or a redis:// URL in cfg.Address.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisClient{Client: redis.NewClient(opts)}, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis: address is empty")
	}

	var opts *redis.Options
	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("redis: invalid url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Address, DB: cfg.DB}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	// lookups are small and latency bound
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	return opts, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
