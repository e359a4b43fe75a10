package cachestack

import (
	"context"
	"errors"
	"iter"
	"regexp"
	"slices"

	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/internal/iterutil"
)

// Invalidator explicitly removes keys from every tier, emitting EventInvalidated.
type Invalidator[V any] struct {
	s *Stack[V]
}

// Invalidate removes key from every tier.
func (v Invalidator[V]) Invalidate(ctx context.Context, key string) error {
	return v.s.fanOut("invalidate", key, func(t *cache.Cache[V]) error {
		return t.Invalidate(ctx, key)
	})
}

// InvalidateMany invalidates each distinct key of keys.
func (v Invalidator[V]) InvalidateMany(ctx context.Context, keys []string) error {
	var errs []error
	for key := range iterutil.Uniq(slices.Values(keys)) {
		if err := v.Invalidate(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InvalidatePattern invalidates every key of any tier matching pattern and returns them.
func (v Invalidator[V]) InvalidatePattern(ctx context.Context, pattern *regexp.Regexp) ([]string, error) {
	keys := slices.Collect(iterutil.Filter(v.union(ctx, "keys", (*cache.Cache[V]).Keys), pattern.MatchString))
	return keys, v.InvalidateMany(ctx, keys)
}

// InvalidateStale invalidates every key that is stale but not yet defunct in any tier
// and returns them.
func (v Invalidator[V]) InvalidateStale(ctx context.Context) ([]string, error) {
	keys := slices.Collect(v.union(ctx, "stale_keys", (*cache.Cache[V]).StaleKeys))
	return keys, v.InvalidateMany(ctx, keys)
}

// union collects the keys listed by every tier. A tier that cannot list is logged and skipped.
func (v Invalidator[V]) union(ctx context.Context, op string, list func(*cache.Cache[V], context.Context) ([]string, error)) iter.Seq[string] {
	seqs := make([]iter.Seq[string], 0, len(v.s.tiers))
	for _, t := range v.s.tiers {
		keys, err := list(t, ctx)
		if err != nil {
			v.s.metrics.RecordTierError(t.Name(), op)
			v.s.logger.Warn("tier key listing failed", "tier", t.Name(), "error", err)
			continue
		}
		seqs = append(seqs, slices.Values(keys))
	}
	return iterutil.Union(seqs...)
}
