package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/karupanerura/taskguard"
)

// Retry defaults.
const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryDelay       = time.Second
)

// DefaultRetryOptions returns 3 retries, a 1s base delay and no retries for missing
// handlers or cancellations.
func DefaultRetryOptions() taskguard.RetryOptions {
	return taskguard.RetryOptions{
		MaxAttempts:  taskguard.Ptr(DefaultRetryMaxAttempts),
		Delay:        taskguard.Ptr(DefaultRetryDelay),
		NonRetryable: []error{taskguard.ErrNoHandler, taskguard.ErrCanceled, context.Canceled},
	}
}

// Retry re-runs a failing task with linear backoff: retry n waits Delay*n.
// After MaxAttempts retries the last error is returned.
type Retry[R any] struct {
	defaults taskguard.RetryOptions
	opts     options
}

var _ taskguard.Strategy[struct{}] = (*Retry[struct{}])(nil)

// NewRetry creates a retry strategy. Unset fields of defaults use DefaultRetryOptions.
func NewRetry[R any](defaults taskguard.RetryOptions, opts ...Option) *Retry[R] {
	return &Retry[R]{
		defaults: defaults.Merge(DefaultRetryOptions()),
		opts:     newOptions(opts),
	}
}

// Execute runs task through the strategy with the default options.
func (r *Retry[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return r.ExecuteWith(ctx, req, r.defaults, task)
}

// ExecuteWith runs task through the strategy with o.
func (r *Retry[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, o taskguard.RetryOptions, task taskguard.Task[R]) (R, error) {
	o = o.Merge(r.defaults)
	maxAttempts := taskguard.Deref(o.MaxAttempts, DefaultRetryMaxAttempts)
	delay := taskguard.Deref(o.Delay, DefaultRetryDelay)

	for attempt := 1; ; attempt++ {
		v, err := task(ctx, req)
		if err == nil {
			return v, nil
		}
		if attempt > maxAttempts || isAny(err, o.NonRetryable) {
			return v, err
		}

		wait := delay * time.Duration(attempt)
		r.opts.metrics.RecordStrategy("retry", "retried")
		r.opts.logger.Debug("retrying task", "name", req.Name, "attempt", attempt, "delay", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			var zero R
			return zero, err
		}
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// sleep waits for d or until ctx is done, returning the cancellation cause.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
