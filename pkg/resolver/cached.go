package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"streamgate/pkg/cache"
	"streamgate/pkg/interfaces"
	"streamgate/pkg/logging"
	"streamgate/pkg/metrics"
	"streamgate/pkg/types"
)

// Cached wraps a Registry with TTL caching and single-flight
// de-duplication. A cache hit short-circuits the outbound fetch
// entirely; concurrent resolutions of the same embed URL share one
// upstream call instead of racing to write the cache.
type Cached struct {
	registry *Registry
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
	log      *logging.Logger
}

// NewCached creates a caching resolver around registry.
func NewCached(registry *Registry, c cache.Cache, ttl time.Duration, log *logging.Logger) *Cached {
	return &Cached{
		registry: registry,
		cache:    c,
		ttl:      ttl,
		log:      log.WithComponent("resolver-cache"),
	}
}

// Providers reports the wrapped registry's provider names.
func (c *Cached) Providers() []string {
	return c.registry.Providers()
}

func resolveCacheKey(embedURL string) string {
	return "resolve:" + embedURL
}

// Resolve returns the cached resolution for embedURL when fresh, and
// otherwise performs a single shared resolution for all concurrent
// callers. Failures are never cached.
func (c *Cached) Resolve(ctx context.Context, embedURL string) (*types.Resolution, error) {
	key := resolveCacheKey(embedURL)

	if v, ok := c.cache.Get(key); ok {
		metrics.CacheOpsTotal.WithLabelValues("resolver", "hit").Inc()
		c.log.Debug("resolution cache hit", "url", embedURL)
		return v.(*types.Resolution), nil
	}
	metrics.CacheOpsTotal.WithLabelValues("resolver", "miss").Inc()

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A racer may have completed while we waited on the flight.
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}

		res, err := c.registry.Resolve(ctx, embedURL)
		if err != nil {
			metrics.ResolutionsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		c.cache.Put(key, res, c.ttl)
		metrics.ResolutionsTotal.WithLabelValues("ok").Inc()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("resolution shared with concurrent caller", "url", embedURL)
	}

	return v.(*types.Resolution), nil
}

var _ interfaces.EmbedResolver = (*Cached)(nil)
