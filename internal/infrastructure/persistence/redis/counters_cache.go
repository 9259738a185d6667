package redis

import (
	"context"
	"errors"
	"time"

	"github.com/solvera/ojt-core/internal/domain/batch"
	"github.com/solvera/ojt-core/pkg/circuitbreaker"
)

// CountersCache implements batch.CountersCache on top of Cache. With a
// breaker attached, calls fail fast while Redis is down and readers fall
// back to the repository.
type CountersCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
}

// NewCountersCache creates a CountersCache. A non-positive ttl uses TTLBatchCounters.
func NewCountersCache(cache *Cache, ttl time.Duration) *CountersCache {
	if ttl <= 0 {
		ttl = TTLBatchCounters
	}
	return &CountersCache{cache: cache, ttl: ttl}
}

// WithBreaker routes every call through b.
func (c *CountersCache) WithBreaker(b *circuitbreaker.Breaker) *CountersCache {
	c.breaker = b
	return c
}

func (c *CountersCache) do(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// Get returns the cached counters of a batch.
func (c *CountersCache) Get(ctx context.Context, batchID string) (batch.Counters, bool, error) {
	var out batch.Counters
	found := false
	err := c.do(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, BatchCountersKey(batchID), &out)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return batch.Counters{}, false, err
	}
	return out, true, nil
}

// Set stores the counters of a batch.
func (c *CountersCache) Set(ctx context.Context, batchID string, counters batch.Counters) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, BatchCountersKey(batchID), counters, c.ttl)
	})
}

// Invalidate drops the cached counters of a batch.
func (c *CountersCache) Invalidate(ctx context.Context, batchID string) error {
	return c.do(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, BatchCountersKey(batchID))
	})
}
