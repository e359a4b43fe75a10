package strategy

import (
	"context"
	"runtime"
	"sync"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/internal/panicutil"
)

type outcome[R any] struct {
	value R
	err   error
}

// Dedup coalesces concurrent executions of the same logical request: while a flight for
// a key is running, later callers wait for its outcome instead of running the task again.
// The flight is forgotten once it settles, whatever the outcome.
//
// The task runs on a context detached from the first caller's cancellation, so a caller
// giving up does not fail the others. Callers other than the first receive a clone of the
// value when R has a Clone or DeepCopy method.
type Dedup[R any] struct {
	defaults taskguard.DedupOptions
	cloner   taskguard.ValueCloner[R]
	opts     options

	mu      sync.Mutex
	flights map[string][]chan outcome[R]
}

var _ taskguard.Strategy[struct{}] = (*Dedup[struct{}])(nil)

// NewDedup creates a deduplication strategy.
func NewDedup[R any](defaults taskguard.DedupOptions, opts ...Option) *Dedup[R] {
	cloner, ok := taskguard.LookupValueCloner[R]()
	if !ok {
		cloner = taskguard.NopValueCloner[R]{}
	}
	return &Dedup[R]{
		defaults: defaults.Merge(taskguard.DedupOptions{Serialize: taskguard.DefaultSerializer}),
		cloner:   cloner,
		opts:     newOptions(opts),
		flights:  map[string][]chan outcome[R]{},
	}
}

// Execute runs task through the strategy with the default options.
func (d *Dedup[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	return d.ExecuteWith(ctx, req, d.defaults, task)
}

// ExecuteWith runs task through the strategy with o.
func (d *Dedup[R]) ExecuteWith(ctx context.Context, req *taskguard.Request, o taskguard.DedupOptions, task taskguard.Task[R]) (R, error) {
	o = o.Merge(d.defaults)
	key := o.Serialize(req)

	ch := d.join(ctx, key, req, task)
	select {
	case res := <-ch:
		if res.err == panicutil.ErrGoexit {
			runtime.Goexit()
		}
		return res.value, res.err
	case <-ctx.Done():
		var zero R
		return zero, context.Cause(ctx)
	}
}

// InFlight returns the number of keys with a running flight.
func (d *Dedup[R]) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.flights)
}

// join registers a waiter for key and starts the flight if it is the first one.
func (d *Dedup[R]) join(ctx context.Context, key string, req *taskguard.Request, task taskguard.Task[R]) chan outcome[R] {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan outcome[R], 1)
	d.flights[key] = append(d.flights[key], ch)
	if len(d.flights[key]) == 1 {
		go d.fly(context.WithoutCancel(ctx), key, req, task)
	} else {
		d.opts.metrics.RecordStrategy("dedup", "shared")
	}
	return ch
}

func (d *Dedup[R]) fly(ctx context.Context, key string, req *taskguard.Request, task taskguard.Task[R]) {
	g := panicutil.Guard{
		OnGoexit: func() {
			d.settle(key, outcome[R]{err: panicutil.ErrGoexit})
		},
	}

	var res outcome[R]
	res.err = g.Invoke(func() (err error) {
		res.value, err = task(ctx, req)
		return err
	})
	d.settle(key, res)
}

// settle delivers res to every waiter of key and forgets the flight.
func (d *Dedup[R]) settle(key string, res outcome[R]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, ch := range d.flights[key] {
		r := res
		if i != 0 && r.err == nil {
			// the first receiver keeps the original value
			r.value = d.cloner.CloneValue(r.value)
		}
		ch <- r
		close(ch)
	}
	delete(d.flights, key)
}
