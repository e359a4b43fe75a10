package strategy

import (
	"context"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/internal/panicutil"
)

// DefaultTimeout is the time budget of a task when none is configured.
const DefaultTimeout = 30 * time.Second

// Timeout races the task against a timer and fails with *taskguard.TimeoutError when the
// timer fires first. The task is not cancelled unless WithHardTimeout is set; its late
// result is discarded.
type Timeout[R any] struct {
	timeout time.Duration
	opts    options
}

var _ taskguard.Strategy[struct{}] = (*Timeout[struct{}])(nil)

// NewTimeout creates a timeout strategy. A non-positive timeout uses DefaultTimeout.
func NewTimeout[R any](timeout time.Duration, opts ...Option) *Timeout[R] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Timeout[R]{timeout: timeout, opts: newOptions(opts)}
}

// Execute runs task through the strategy with the default timeout.
func (t *Timeout[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return t.ExecuteWith(ctx, req, t.timeout, task)
}

// ExecuteWith runs task with the budget d. A non-positive d uses the default timeout.
func (t *Timeout[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, d time.Duration, task taskguard.Task[R]) (R, error) {
	if d <= 0 {
		d = t.timeout
	}

	taskCtx, cancel := ctx, context.CancelCauseFunc(func(error) {})
	if t.opts.hardTimeout {
		taskCtx, cancel = context.WithCancelCause(ctx)
	}

	done := make(chan outcome[R], 1)
	go func() {
		g := panicutil.Guard{
			OnGoexit: func() {
				done <- outcome[R]{err: panicutil.ErrGoexit}
			},
		}
		var res outcome[R]
		res.err = g.Invoke(func() (err error) {
			res.value, err = task(taskCtx, req)
			return err
		})
		done <- res
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero R
	select {
	case res := <-done:
		cancel(nil)
		return res.value, res.err
	case <-timer.C:
		err := &taskguard.TimeoutError{Timeout: d}
		cancel(err)
		t.opts.metrics.RecordStrategy("timeout", "timed_out")
		return zero, err
	case <-ctx.Done():
		cancel(nil)
		return zero, context.Cause(ctx)
	}
}
