package cachestack

import (
	"context"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
)

// Writer stores values in every tier.
type Writer[V any] struct {
	s *Stack[V]
}

// Set writes value under key to every tier, each timing the entry with its own defaults
// unless opts override them. Per-tier failures are logged; the returned error wraps
// ErrAllTiersFailed when no tier accepted the write.
func (w Writer[V]) Set(ctx context.Context, key string, value V, opts ...cache.SetOption) error {
	return w.s.fanOut("set", key, func(t *cache.Cache[V]) error {
		return t.Set(ctx, key, value, opts...)
	})
}

// SetEntry writes entry as is to every tier.
func (w Writer[V]) SetEntry(ctx context.Context, entry *taskguard.CacheEntry[V]) error {
	return w.s.fanOut("set", entry.Key, func(t *cache.Cache[V]) error {
		return t.SetEntry(ctx, entry)
	})
}
