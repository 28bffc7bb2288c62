// Package redis caches alias to target URL mappings in Redis. Targets are immutable
// after creation, so entries are never invalidated and only expire.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "link:target:"

type TargetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect creates a client for addr and checks the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "adapter.cache.redis.Connect"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}

func NewTargetCache(client *redis.Client, ttl time.Duration) *TargetCache {
	return &TargetCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached target of alias. The boolean is false on a cache miss.
func (c *TargetCache) Get(ctx context.Context, alias string) (string, bool, error) {
	const op = "adapter.cache.redis.TargetCache.Get"

	target, err := c.client.Get(ctx, keyPrefix+alias).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s: failed to get target: %w", op, err)
	}

	return target, true, nil
}

func (c *TargetCache) Set(ctx context.Context, alias, target string) error {
	const op = "adapter.cache.redis.TargetCache.Set"

	if err := c.client.Set(ctx, keyPrefix+alias, target, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set target: %w", op, err)
	}

	return nil
}
