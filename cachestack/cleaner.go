package cachestack

import (
	"context"

	"github.com/karupanerura/taskguard/cache"
)

// Cleaner deletes keys from every tier, emitting EventRemoved.
type Cleaner[V any] struct {
	s *Stack[V]
}

// Delete removes key from every tier.
func (c Cleaner[V]) Delete(ctx context.Context, key string) error {
	return c.s.fanOut("delete", key, func(t *cache.Cache[V]) error {
		return t.Delete(ctx, key)
	})
}

// Clear empties every tier.
func (c Cleaner[V]) Clear(ctx context.Context) error {
	return c.s.fanOut("clear", "", func(t *cache.Cache[V]) error {
		return t.Clear(ctx)
	})
}
