package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// Cache is a read-through JSON cache over Redis for served risk payloads.
// A nil *Cache is valid and disables caching entirely. Backend errors are
// counted and treated as misses: a cache outage slows reads down, it never
// fails them.
type Cache struct {
	client  *redis.Client
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	prefix  string
}

// New creates a cache over an existing Redis client. The prefix namespaces
// every key so multiple deployments can share one Redis.
func New(client *redis.Client, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, prefix string) *Cache {
	return &Cache{
		client:  client,
		logger:  logger,
		metrics: metricsCollector,
		prefix:  prefix,
	}
}

// Key builds a namespaced cache key from parts
func (c *Cache) Key(parts ...string) string {
	if c == nil {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Get loads a cached JSON value into dest. The name labels hit/miss
// metrics per logical cache ("risk", "summary"). Returns false on miss,
// backend error, or decode failure.
func (c *Cache) Get(ctx context.Context, name, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.metrics.RecordCacheMiss(name)
		return false
	}
	if err != nil {
		c.metrics.RecordCacheError()
		c.logger.Warn(ctx, "[CACHE_ERROR] Cache read failed", logging.Fields{
			"key": key,
		})
		return false
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		// Cached payload no longer matches the model shape.
		c.metrics.RecordCacheError()
		c.client.Del(ctx, key)
		return false
	}

	c.metrics.RecordCacheHit(name)
	return true
}

// Set stores a JSON value with a TTL. Failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn(ctx, "[CACHE_ERROR] Cache value not serializable", logging.Fields{
			"key": key,
		})
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.metrics.RecordCacheError()
		c.logger.Warn(ctx, "[CACHE_ERROR] Cache write failed", logging.Fields{
			"key": key,
		})
	}
}

// Delete removes specific keys
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.metrics.RecordCacheError()
	}
}

// DeleteByPattern removes every key matching a glob pattern. Used after an
// epoch publish to drop all per-location score entries at once.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) {
	if c == nil || c.client == nil {
		return
	}

	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		c.metrics.RecordCacheError()
		c.logger.Warn(ctx, "[CACHE_ERROR] Cache key scan failed", logging.Fields{
			"pattern": pattern,
		})
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.metrics.RecordCacheError()
	}
}
