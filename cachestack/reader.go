package cachestack

import (
	"context"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
)

// Reader looks keys up tier by tier and promotes hits into the faster tiers.
type Reader[V any] struct {
	s *Stack[V]
}

// GetEntry returns the first entry found for key, or nil.
// Tier read failures are logged and the scan moves on to the next tier.
func (r Reader[V]) GetEntry(ctx context.Context, key string) *taskguard.CacheEntry[V] {
	entry, _ := r.lookup(ctx, key)
	return entry
}

// Get returns the first value found for key with its staleness, or nil.
func (r Reader[V]) Get(ctx context.Context, key string) *taskguard.Result[V] {
	entry, tier := r.lookup(ctx, key)
	if entry == nil {
		return nil
	}
	return &taskguard.Result[V]{Value: entry.Value, IsStale: tier.IsStale(entry)}
}

// lookup returns the entry and the tier it was found in.
func (r Reader[V]) lookup(ctx context.Context, key string) (*taskguard.CacheEntry[V], *cache.Cache[V]) {
	for i, tier := range r.s.tiers {
		entry, err := tier.GetEntry(ctx, key)
		if err != nil {
			r.s.metrics.RecordTierError(tier.Name(), "get")
			r.s.logger.Warn("tier read failed", "tier", tier.Name(), "key", key, "error", err)
			continue
		}
		if entry == nil {
			continue
		}
		r.promote(ctx, entry, r.s.tiers[:i])
		return entry, tier
	}
	return nil, nil
}

// promote copies entry, timing included, into each of faster.
func (r Reader[V]) promote(ctx context.Context, entry *taskguard.CacheEntry[V], faster []*cache.Cache[V]) {
	for _, tier := range faster {
		if err := tier.SetEntry(ctx, entry); err != nil {
			r.s.metrics.RecordTierError(tier.Name(), "promote")
			r.s.logger.Warn("tier promotion failed", "tier", tier.Name(), "key", entry.Key, "error", err)
		}
	}
}
