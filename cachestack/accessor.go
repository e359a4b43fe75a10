package cachestack

import (
	"context"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
)

// Factory computes the value of a key.
type Factory[V any] func(ctx context.Context) (V, error)

// GetOrSetOptions configures Accessor.GetOrSet.
type GetOrSetOptions struct {
	// StaleWhileRevalidate returns a stale value immediately and refreshes it in the background.
	StaleWhileRevalidate bool

	// Set applies to writes of freshly computed values.
	Set []cache.SetOption
}

// Accessor combines reads and writes.
type Accessor[V any] struct {
	s *Stack[V]
}

// GetOrSet returns the cached value of key, computing and storing it with factory when it
// is absent, defunct or stale. With StaleWhileRevalidate a stale value is returned as is
// and refreshed in the background; the outcome is reported with EventRevalidated or
// EventRevalidationFailed and never returned to the caller.
func (a Accessor[V]) GetOrSet(ctx context.Context, key string, factory Factory[V], opts GetOrSetOptions) (*taskguard.Result[V], error) {
	entry, tier := a.s.Reader().lookup(ctx, key)
	switch {
	case entry == nil:
	case !tier.IsStale(entry):
		return &taskguard.Result[V]{Value: entry.Value}, nil
	case opts.StaleWhileRevalidate:
		a.revalidate(context.WithoutCancel(ctx), key, factory, opts)
		return &taskguard.Result[V]{Value: entry.Value, IsStale: true}, nil
	}

	v, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	_ = a.s.Writer().Set(ctx, key, v, opts.Set...)
	return &taskguard.Result[V]{Value: v}, nil
}

// revalidate refreshes key in the background unless a refresh of it is already running.
func (a Accessor[V]) revalidate(ctx context.Context, key string, factory Factory[V], opts GetOrSetOptions) {
	s := a.s
	s.mu.Lock()
	if _, running := s.revalidating[key]; running {
		s.mu.Unlock()
		return
	}
	s.revalidating[key] = struct{}{}
	s.mu.Unlock()

	done := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.revalidating, key)
	}
	s.goBackground(func() error {
		defer done()
		v, err := factory(ctx)
		if err != nil {
			return err
		}
		if err := s.Writer().Set(ctx, key, v, opts.Set...); err != nil {
			return err
		}
		s.Emitter().Emit(taskguard.EventRevalidated, key)
		return nil
	}, func(err error) {
		s.logger.Warn("background revalidation failed", "key", key, "error", err)
		s.Emitter().Emit(taskguard.EventRevalidationFailed, key)
	})
}
