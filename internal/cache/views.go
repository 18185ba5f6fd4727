// Package cache keeps short-lived copies of read views in Redis and publishes
// leaderboard snapshots over Redis pub/sub.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the view cache
const DefaultPrefix = "shilka:"

// ViewCache stores JSON encoded views under a common key prefix
type ViewCache struct {
	client *redis.Client
	prefix string
}

// NewViewCache creates a view cache on top of an existing client
func NewViewCache(client *redis.Client, prefix string) *ViewCache {
	return &ViewCache{client: client, prefix: prefix}
}

func (c *ViewCache) key(k string) string {
	return c.prefix + k
}

// Get decodes the cached value for key into dst. It reports false on a miss.
func (c *ViewCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under key for ttl
func (c *ViewCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

// InvalidatePattern deletes every key matching the glob pattern and returns
// how many were removed. SCAN is used instead of KEYS so large keyspaces do
// not block the server.
func (c *ViewCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(pattern), 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
