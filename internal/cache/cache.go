package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys for the two unauthenticated hot reads.
const (
	KeyBooksList = "books:list:v1"
	KeyBooksBest = "books:best:v1"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache is a small JSON-over-Redis read cache. A nil *Cache is a valid no-op
// cache, so callers never branch on whether caching is configured.
type Cache struct {
	redisdb *redis.Client
	ttl     time.Duration
}

func New(cfg Config) *Cache {
	if cfg.Addr == "" {
		return nil
	}

	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}

	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Cache{redisdb: redisdb, ttl: cfg.TTL}
}

// Get unmarshals the cached value into out and reports whether it was there.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}

	raw, err := c.redisdb.Get(ctx, key).Bytes()

	if err != nil {
		return false
	}

	return json.Unmarshal(raw, out) == nil
}

// Set stores the value under the configured TTL. Failures are ignored, the
// cache is best effort.
func (c *Cache) Set(ctx context.Context, key string, val any) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(val)

	if err != nil {
		return
	}

	_ = c.redisdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate drops the given keys after any book write.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}

	_ = c.redisdb.Del(ctx, keys...).Err()
}

// Ping checks redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.redisdb.Ping(ctx).Err()
}

// Close shuts the client down.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}

	return c.redisdb.Close()
}
