package rewrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lookupPrefix = "offloader:file:"

// Lookup caches the mapping from an upload-relative file path to the id of
// the attachment owning it. An empty id records that no attachment owns
// the file.
type Lookup interface {
	Get(ctx context.Context, file string) (id string, ok bool, err error)
	Set(ctx context.Context, file, id string) error
	Forget(ctx context.Context, file string) error
}

// RedisLookup implements Lookup using Redis.
type RedisLookup struct {
	client  *redis.Client
	ttl     time.Duration
	missTTL time.Duration
}

// NewRedisLookup creates a Redis-backed Lookup. Hits live for ttl, misses
// for missTTL so newly registered files show up quickly.
func NewRedisLookup(client *redis.Client, ttl, missTTL time.Duration) *RedisLookup {
	return &RedisLookup{client: client, ttl: ttl, missTTL: missTTL}
}

// Get returns the cached id for file.
func (c *RedisLookup) Get(ctx context.Context, file string) (string, bool, error) {
	id, err := c.client.Get(ctx, lookupPrefix+file).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get lookup: %w", err)
	}
	return id, true, nil
}

// Set caches id for file.
func (c *RedisLookup) Set(ctx context.Context, file, id string) error {
	ttl := c.ttl
	if id == "" {
		ttl = c.missTTL
	}
	if err := c.client.Set(ctx, lookupPrefix+file, id, ttl).Err(); err != nil {
		return fmt.Errorf("redis set lookup: %w", err)
	}
	return nil
}

// Forget drops the cached entry for file.
func (c *RedisLookup) Forget(ctx context.Context, file string) error {
	if err := c.client.Del(ctx, lookupPrefix+file).Err(); err != nil {
		return fmt.Errorf("redis del lookup: %w", err)
	}
	return nil
}
