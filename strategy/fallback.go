package strategy

import (
	"context"
	"fmt"

	"github.com/karupanerura/taskguard"
)

// Fallback returns a substitute result when the task fails.
type Fallback[R any] struct {
	fallback taskguard.FallbackFunc
	opts     options
}

var _ taskguard.Strategy[struct{}] = (*Fallback[struct{}])(nil)

// NewFallback creates a fallback strategy. A nil fn makes it a pass-through.
func NewFallback[R any](fn taskguard.FallbackFunc, opts ...Option) *Fallback[R] {
	return &Fallback[R]{fallback: fn, opts: newOptions(opts)}
}

// Execute runs task through the strategy with the default fallback.
func (f *Fallback[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return f.ExecuteWith(ctx, req, f.fallback, task)
}

// ExecuteWith runs task and substitutes fn(ctx, req, err) if it fails.
// A nil fn uses the default fallback.
func (f *Fallback[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, fn taskguard.FallbackFunc, task taskguard.Task[R]) (R, error) {
	if fn == nil {
		fn = f.fallback
	}
	v, err := task(ctx, req)
	if err == nil || fn == nil {
		return v, err
	}

	f.opts.metrics.RecordStrategy("fallback", "substituted")
	f.opts.logger.Debug("substituting fallback result", "name", req.Name, "error", err)

	var zero R
	substitute, ferr := fn(ctx, req, err)
	if ferr != nil {
		return zero, ferr
	}
	if substitute == nil {
		return zero, nil
	}
	r, ok := substitute.(R)
	if !ok {
		return zero, fmt.Errorf("fallback for %q returned %T, want %T: %w", req.Name, substitute, zero, err)
	}
	return r, nil
}
