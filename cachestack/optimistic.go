package cachestack

import (
	"context"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/internal/panicutil"
)

// Operation is the remote work an optimistic update or delete stands in for.
type Operation[V any] func(ctx context.Context) (V, error)

// UpdateOptions configures Optimistic.Update.
type UpdateOptions[V any] struct {
	// Optimistic computes the provisional value from the previous one. It is written
	// before the operation runs. Nil skips the provisional write.
	Optimistic func(prev V, found bool) V

	// Transform maps the operation result to the value that is stored.
	Transform func(result V) V

	OnSuccess func(value V)
	OnError   func(err error)
	OnSettled func(value V, err error)
}

// OptimisticValue returns an UpdateOptions.Optimistic that ignores the previous value.
func OptimisticValue[V any](v V) func(V, bool) V {
	return func(V, bool) V { return v }
}

// DeleteOptions configures Optimistic.Delete.
type DeleteOptions struct {
	OnSuccess func()
	OnError   func(err error)
	OnSettled func(err error)
}

// Optimistic applies changes to the cache ahead of the operation they depend on and
// rolls them back if it fails.
type Optimistic[V any] struct {
	s *Stack[V]
}

// Update writes the optimistic value, runs operation and then stores its (transformed)
// result. If operation fails, the previous entry is restored verbatim (or the provisional
// value removed when there was none), EventOptimisticRollback is emitted and the
// operation's error is returned.
func (o Optimistic[V]) Update(ctx context.Context, key string, operation Operation[V], opts UpdateOptions[V]) (V, error) {
	prev := o.s.Reader().GetEntry(ctx, key)
	emitter := o.s.Emitter()

	provisional := false
	if opts.Optimistic != nil {
		var current V
		if prev != nil {
			current = prev.Value
		}
		o.write(ctx, key, prev, opts.Optimistic(current, prev != nil))
		provisional = true
		emitter.Emit(taskguard.EventOptimisticUpdate, key)
	}

	var result V
	err := panicutil.Run(func() (err error) {
		result, err = operation(ctx)
		return err
	})
	if err != nil {
		o.rollback(ctx, key, prev, provisional)
		if opts.OnError != nil {
			opts.OnError(err)
		}
		if opts.OnSettled != nil {
			var zero V
			opts.OnSettled(zero, err)
		}
		var zero V
		return zero, err
	}

	if opts.Transform != nil {
		result = opts.Transform(result)
	}
	o.write(ctx, key, prev, result)
	if opts.OnSuccess != nil {
		opts.OnSuccess(result)
	}
	if opts.OnSettled != nil {
		opts.OnSettled(result, nil)
	}
	emitter.Emit(taskguard.EventOptimisticUpdate, key)
	return result, nil
}

// Delete invalidates key, runs operation and restores the previous entry if it fails.
func (o Optimistic[V]) Delete(ctx context.Context, key string, operation func(ctx context.Context) error, opts DeleteOptions) error {
	prev := o.s.Reader().GetEntry(ctx, key)
	_ = o.s.Invalidator().Invalidate(ctx, key)

	err := panicutil.Run(func() error { return operation(ctx) })
	if err != nil {
		if prev != nil {
			_ = o.s.Writer().SetEntry(ctx, prev)
		}
		o.s.Emitter().Emit(taskguard.EventOptimisticRollback, key)
		if opts.OnError != nil {
			opts.OnError(err)
		}
		if opts.OnSettled != nil {
			opts.OnSettled(err)
		}
		return err
	}

	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	if opts.OnSettled != nil {
		opts.OnSettled(nil)
	}
	o.s.Emitter().Emit(taskguard.EventOptimisticDelete, key)
	return nil
}

// write stores v under key, keeping the timing of prev when there is one.
// Failures are logged by the writer.
func (o Optimistic[V]) write(ctx context.Context, key string, prev *taskguard.CacheEntry[V], v V) {
	w := o.s.Writer()
	if prev != nil {
		_ = w.SetEntry(ctx, prev.WithValue(v))
		return
	}
	_ = w.Set(ctx, key, v)
}

func (o Optimistic[V]) rollback(ctx context.Context, key string, prev *taskguard.CacheEntry[V], provisional bool) {
	switch {
	case prev != nil:
		_ = o.s.Writer().SetEntry(ctx, prev)
	case provisional:
		_ = o.s.Invalidator().Invalidate(ctx, key)
	}
	o.s.Emitter().Emit(taskguard.EventOptimisticRollback, key)
}
