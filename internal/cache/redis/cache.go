// Package redis implements the response cache on Redis. Entries are
// content-addressed: the key already encodes provider, model, and the
// request fingerprint, so storage is a plain GET/SET with TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

// Config contains Redis connection settings.
type Config struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
	Enabled  bool   `env:"CACHE_ENABLED"  envDefault:"false"`
}

// Cache implements domain.ResponseCache on a Redis client.
type Cache struct {
	client *redis.Client
}

// NewCache creates a Redis-backed response cache and verifies
// connectivity.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewCacheWithClient wraps an existing client, mainly for tests.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get retrieves a cached entry, reporting domain.ErrCacheMiss when absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return data, nil
}

// Set stores an entry with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}

	observability.FromContext(ctx).Debug("cached response",
		observability.String("key", key),
		observability.Int("size", len(data)),
		observability.Duration("ttl", ttl))
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
