// internal/sources/cache.go
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const bundleCachePrefix = "ucap:bundle:"

// Cache keeps each system's normalized, unfiltered bundle in redis.
// Concurrent misses for one system share a single load. A nil *Cache, or
// one without a redis client, only coalesces loads.
type Cache struct {
	client *redis.Client
	ttl    map[models.SystemType]time.Duration
	flight singleflight.Group
	logger Logger
}

func NewCache(client *redis.Client, ttl map[models.SystemType]time.Duration, log Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func cacheKey(system models.SystemType) string {
	return bundleCachePrefix + string(system)
}

// GetOrLoad returns the cached bundle of system or calls load and stores the result.
func (c *Cache) GetOrLoad(ctx context.Context, system models.SystemType, load func(context.Context) (*models.EntityBundle, error)) (*models.EntityBundle, error) {
	if c == nil {
		return load(ctx)
	}

	if bundle, ok := c.get(ctx, system); ok {
		return bundle, nil
	}

	// The shared load is detached from any single caller's cancellation.
	ch := c.flight.DoChan(string(system), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()

		bundle, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.set(loadCtx, system, bundle)
		return bundle, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.EntityBundle), nil
	}
}

func (c *Cache) enabled(system models.SystemType) bool {
	return c.client != nil && c.ttl[system] > 0
}

func (c *Cache) get(ctx context.Context, system models.SystemType) (*models.EntityBundle, bool) {
	if !c.enabled(system) {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKey(system)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Bundle cache read failed", map[string]interface{}{
				"system": string(system),
				"error":  err.Error(),
			})
		}
		metrics.SourceCacheLookups.WithLabelValues(string(system), "miss").Inc()
		return nil, false
	}

	var bundle models.EntityBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		c.logger.Warn("Bundle cache entry is corrupt", map[string]interface{}{
			"system": string(system),
			"error":  err.Error(),
		})
		metrics.SourceCacheLookups.WithLabelValues(string(system), "miss").Inc()
		return nil, false
	}

	metrics.SourceCacheLookups.WithLabelValues(string(system), "hit").Inc()
	return &bundle, true
}

func (c *Cache) set(ctx context.Context, system models.SystemType, bundle *models.EntityBundle) {
	if !c.enabled(system) {
		return
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(system), raw, c.ttl[system]).Err(); err != nil {
		c.logger.Warn("Bundle cache write failed", map[string]interface{}{
			"system": string(system),
			"error":  err.Error(),
		})
	}
}

// Invalidate drops the cached bundle of each given system.
func (c *Cache) Invalidate(ctx context.Context, systems ...models.SystemType) error {
	if c == nil || c.client == nil || len(systems) == 0 {
		return nil
	}
	keys := make([]string, 0, len(systems))
	for _, s := range systems {
		keys = append(keys, cacheKey(s))
	}
	return c.client.Del(ctx, keys...).Err()
}
