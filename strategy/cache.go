package strategy

import (
	"context"
	"sync"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/cachestack"
	"github.com/karupanerura/taskguard/internal/panicutil"
	"github.com/sourcegraph/conc"
)

// Cache serves results from a cache stack. A stale hit is returned at once and refreshed
// in the background. On a miss, or when the request forces invalidation, the task runs and
// its result is written to the fast tier, and also to the slow tier when persisting.
// Failed results are never cached.
type Cache[R any] struct {
	stack    *cachestack.Stack[R]
	fast     *cache.Cache[R]
	slow     *cache.Cache[R]
	defaults taskguard.CacheOptions
	opts     options

	background conc.WaitGroup
	mu         sync.Mutex
	refreshing map[string]struct{}
}

var _ taskguard.Strategy[struct{}] = (*Cache[struct{}])(nil)

// NewCache creates a caching strategy over stack. The fast and slow tiers are looked up by
// the names given with WithTierNames; a missing fast tier falls back to the first tier and
// a missing slow tier disables persisting.
func NewCache[R any](stack *cachestack.Stack[R], defaults taskguard.CacheOptions, opts ...Option) *Cache[R] {
	o := newOptions(opts)
	c := &Cache[R]{
		stack:      stack,
		fast:       stack.Tier(o.fastTier),
		slow:       stack.Tier(o.slowTier),
		defaults:   defaults.Merge(taskguard.CacheOptions{Serialize: taskguard.DefaultSerializer}),
		opts:       o,
		refreshing: map[string]struct{}{},
	}
	if c.fast == nil {
		c.fast = stack.Tiers()[0]
	}
	if c.slow == c.fast {
		c.slow = nil
	}
	return c
}

// Execute runs task through the strategy with the default options.
func (c *Cache[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return c.ExecuteWith(ctx, req, c.defaults, task)
}

// ExecuteWith runs task through the strategy with o.
func (c *Cache[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, o taskguard.CacheOptions, task taskguard.Task[R]) (R, error) {
	o = o.Merge(c.defaults)
	key := o.Serialize(req)

	if !o.Invalidate {
		if hit := c.stack.Reader().Get(ctx, key); hit != nil {
			if hit.IsStale {
				c.opts.metrics.RecordStrategy("cache", "stale_hit")
				c.refresh(context.WithoutCancel(ctx), key, req, o, task)
			} else {
				c.opts.metrics.RecordStrategy("cache", "hit")
			}
			return hit.Value, nil
		}
	}

	v, err := task(ctx, req)
	if err != nil {
		return v, err
	}
	c.store(ctx, key, v, o)
	return v, nil
}

// Wait blocks until every background refresh has finished.
func (c *Cache[R]) Wait() {
	c.background.Wait()
}

// store writes v to the fast tier and, when persisting, the slow tier. Failures are logged.
func (c *Cache[R]) store(ctx context.Context, key string, v R, o taskguard.CacheOptions) {
	var set []cache.SetOption
	if o.FreshnessWindow != nil {
		set = append(set, cache.WithFreshness(*o.FreshnessWindow))
	}
	if o.RetentionWindow != nil {
		set = append(set, cache.WithRetention(*o.RetentionWindow))
	}

	tiers := []*cache.Cache[R]{c.fast}
	if o.Persist && c.slow != nil {
		tiers = append(tiers, c.slow)
	}
	for _, tier := range tiers {
		if err := tier.Set(ctx, key, v, set...); err != nil {
			c.opts.metrics.RecordTierError(tier.Name(), "set")
			c.opts.logger.Warn("caching result failed", "tier", tier.Name(), "key", key, "error", err)
		}
	}
}

// refresh re-runs task for key in the background unless a refresh is already running.
func (c *Cache[R]) refresh(ctx context.Context, key string, req *taskguard.Request, o taskguard.CacheOptions, task taskguard.Task[R]) {
	c.mu.Lock()
	if _, running := c.refreshing[key]; running {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = struct{}{}
	c.mu.Unlock()

	panicutil.Go(&c.background, func() error {
		defer func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.refreshing, key)
		}()
		v, err := task(ctx, req)
		if err != nil {
			return err
		}
		c.store(ctx, key, v, o)
		return nil
	}, func(err error) {
		c.opts.logger.Warn("background refresh failed", "name", req.Name, "key", key, "error", err)
	})
}
