package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/storage/memstorage"
)

// Throttle defaults.
const (
	DefaultThrottleRate     = 5
	DefaultThrottleInterval = 5 * time.Second
)

// Throttle is a sliding-window rate limiter keyed by request. The unix-millisecond
// timestamps of admitted executions are kept in one cache entry per key, expiring
// with the window. A slot is charged when the task is admitted, whether or not it succeeds.
type Throttle[R any] struct {
	defaults taskguard.ThrottleOptions
	store    *cache.Cache[[]int64]
	owned    bool
	opts     options
}

var _ taskguard.Strategy[struct{}] = (*Throttle[struct{}])(nil)

// NewThrottle creates a throttle keeping its windows in store. A nil store creates a
// private in-memory tier, released by Disconnect.
func NewThrottle[R any](store *cache.Cache[[]int64], defaults taskguard.ThrottleOptions, opts ...Option) *Throttle[R] {
	o := newOptions(opts)
	t := &Throttle[R]{
		defaults: defaults.Merge(taskguard.ThrottleOptions{
			Interval:  taskguard.Ptr(DefaultThrottleInterval),
			Rate:      taskguard.Ptr(DefaultThrottleRate),
			Serialize: taskguard.DefaultSerializer,
		}),
		store: store,
		opts:  o,
	}
	if t.store == nil {
		t.store = cache.New[[]int64](memstorage.New(),
			cache.WithName[[]int64]("throttle"),
			cache.WithClock[[]int64](o.clock),
			cache.WithLogger[[]int64](o.logger),
		)
		t.owned = true
	}
	return t
}

// Execute runs task through the strategy with the default options.
func (t *Throttle[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return t.ExecuteWith(ctx, req, t.defaults, task)
}

// ExecuteWith admits the request under o or fails with *taskguard.ThrottleError without
// running task.
func (t *Throttle[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, o taskguard.ThrottleOptions, task taskguard.Task[R]) (R, error) {
	o = o.Merge(t.defaults)
	rate := taskguard.Deref(o.Rate, DefaultThrottleRate)
	if rate < 1 {
		t.opts.logger.Warn("throttle rate must be at least 1, using the default", "rate", rate, "default", DefaultThrottleRate)
		rate = DefaultThrottleRate
	}
	interval := taskguard.Deref(o.Interval, DefaultThrottleInterval)

	if err := t.admit(ctx, o.Serialize(req), rate, interval); err != nil {
		var zero R
		return zero, err
	}
	return task(ctx, req)
}

func (t *Throttle[R]) admit(ctx context.Context, key string, rate int, interval time.Duration) error {
	now := t.opts.clock.Now()
	cutoff := now.Add(-interval).UnixMilli()

	_, err := t.store.Update(ctx, key, func(stamps []int64, _ bool) ([]int64, error) {
		recent := make([]int64, 0, len(stamps)+1)
		for _, ts := range stamps {
			if ts > cutoff {
				recent = append(recent, ts)
			}
		}
		if len(recent) >= rate {
			return nil, &taskguard.ThrottleError{Rate: rate, Interval: interval}
		}
		return append(recent, now.UnixMilli()), nil
	}, cache.WithFreshness(interval), cache.WithRetention(interval))

	if errors.Is(err, taskguard.ErrThrottled) {
		t.opts.metrics.RecordStrategy("throttle", "rejected")
	}
	return err
}

// Disconnect releases the private store, if any.
func (t *Throttle[R]) Disconnect() {
	if t.owned {
		t.store.Disconnect()
	}
}
