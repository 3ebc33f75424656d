package votes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "tool_upvotes:"

// RedisCache caches vote counts under tool_upvotes:{slug}.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache whose entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached counts for slugs; misses are absent from the map.
func (c *RedisCache) Get(ctx context.Context, slugs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	keys := make([]string, len(slugs))
	for i, slug := range slugs {
		keys[i] = cacheKeyPrefix + slug
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, parseErr := strconv.ParseInt(s, 10, 64)
		if parseErr != nil {
			continue
		}
		out[slugs[i]] = n
	}
	return out, nil
}

// Set stores counts with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for slug, n := range counts {
		pipe.Set(ctx, cacheKeyPrefix+slug, n, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set counts: %w", err)
	}
	return nil
}
