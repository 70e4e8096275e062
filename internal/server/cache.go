package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/metrics"
	pkgredis "github.com/gutensearch/gutensearch/pkg/redis"
)

const cacheKeyPrefix = "query:"

// QueryCache caches serialized search responses in Redis. Concurrent misses
// for the same key are collapsed through singleflight so the engine computes
// each answer once. The whole cache is invalidated after a successful index
// rebuild, since any cached answer may then be stale.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewQueryCache creates a QueryCache. metrics may be nil.
func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached JSON payload for key, or runs compute,
// caches its marshaled result, and returns it. The boolean reports a cache
// hit. Redis failures degrade to computing without caching.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() (any, error)) ([]byte, bool, error) {
	redisKey := c.buildKey(key)
	if data, ok := c.get(ctx, redisKey); ok {
		return data, true, nil
	}

	val, err, _ := c.group.Do(redisKey, func() (interface{}, error) {
		if data, ok := c.get(ctx, redisKey); ok {
			return data, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshaling cached response: %w", err)
		}
		if err := c.client.Set(ctx, redisKey, data, c.cfg.CacheTTL); err != nil {
			c.logger.Error("cache set failed", "key", redisKey, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate drops every cached query response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, redisKey string) ([]byte, bool) {
	data, err := c.client.Get(ctx, redisKey)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", redisKey, "error", err)
		}
		c.miss()
		return nil, false
	}
	c.hit()
	return []byte(data), true
}

func (c *QueryCache) buildKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
