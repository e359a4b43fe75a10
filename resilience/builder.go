// Package resilience assembles the strategies into interceptor pipelines and executes
// requests through them.
//
// Query pipelines run dedup, cache, fallback, retry, timeout, throttle and the default
// handler, outermost first. Command pipelines skip the cache and append two interceptors:
// one invalidating Options.Invalidate after success and one running Options.OnMutate.
package resilience

import (
	"context"
	"log/slog"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cachestack"
	"github.com/karupanerura/taskguard/interceptor"
	"github.com/karupanerura/taskguard/metrics"
	"github.com/karupanerura/taskguard/strategy"
)

// Pipeline is an interceptor chain over requests producing R.
type Pipeline[R any] = interceptor.Manager[*taskguard.Request, R]

// Builder installs resilience interceptors sharing one set of strategy instances.
type Builder[R any] struct {
	stack   *cachestack.Stack[R]
	config  Config
	logger  *slog.Logger
	metrics *metrics.Collector

	dedup          *strategy.Dedup[R]
	cache          *strategy.Cache[R]
	fallback       *strategy.Fallback[R]
	retry          *strategy.Retry[R]
	timeout        *strategy.Timeout[R]
	throttle       *strategy.Throttle[R]
	defaultHandler *strategy.DefaultHandler[R]
}

// NewBuilder creates a builder caching results in stack.
func NewBuilder[R any](stack *cachestack.Stack[R], opts ...Option[R]) *Builder[R] {
	o := options[R]{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  taskguard.SystemClock,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}

	sopts := []strategy.Option{
		strategy.WithLogger(o.logger),
		strategy.WithMetrics(o.metrics),
		strategy.WithClock(o.clock),
		strategy.WithTierNames(o.config.FastTier, o.config.SlowTier),
	}
	if o.hardTimeout {
		sopts = append(sopts, strategy.WithHardTimeout())
	}

	cfg := o.config
	return &Builder[R]{
		stack:          stack,
		config:         cfg,
		logger:         o.logger,
		metrics:        o.metrics,
		dedup:          strategy.NewDedup[R](taskguard.DedupOptions{}, sopts...),
		cache:          strategy.NewCache(stack, cfg.Cache, sopts...),
		fallback:       strategy.NewFallback[R](nil, sopts...),
		retry:          strategy.NewRetry[R](cfg.Retry, sopts...),
		timeout:        strategy.NewTimeout[R](cfg.Timeout, sopts...),
		throttle:       strategy.NewThrottle[R](o.throttleStore, cfg.Throttle, sopts...),
		defaultHandler: strategy.NewDefaultHandler(o.defaultHandler, sopts...),
	}
}

// Stack returns the cache stack results are kept in.
func (b *Builder[R]) Stack() *cachestack.Stack[R] {
	return b.stack
}

// Query installs the query pipeline into p.
func (b *Builder[R]) Query(p *Pipeline[R]) {
	b.common(p, true)
}

// Command installs the command pipeline into p.
func (b *Builder[R]) Command(p *Pipeline[R]) {
	b.common(p, false)
	p.UseFunc("invalidate", b.invalidate)
	p.UseFunc("onMutate", b.onMutate)
}

// Wait blocks until background cache refreshes have finished.
func (b *Builder[R]) Wait() {
	b.cache.Wait()
	b.stack.Wait()
}

// Disconnect releases the strategies' resources. The stack is left connected.
func (b *Builder[R]) Disconnect() {
	b.cache.Wait()
	b.throttle.Disconnect()
}

func (b *Builder[R]) common(p *Pipeline[R], query bool) {
	p.UseFunc("dedup", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		o, ok := resolve(req.Options.Dedup, b.config.Dedup, taskguard.DedupOptions{})
		if !ok {
			return next(ctx, req)
		}
		return b.dedup.ExecuteWith(ctx, req, o, task(next))
	})
	if query {
		p.UseFunc("cache", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
			o, ok := resolve(req.Options.Cache, true, b.config.Cache)
			if !ok {
				return next(ctx, req)
			}
			return b.cache.ExecuteWith(ctx, req, o, task(next))
		})
	}
	p.UseFunc("fallback", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		if req.Options.Fallback == nil {
			return next(ctx, req)
		}
		return b.fallback.ExecuteWith(ctx, req, req.Options.Fallback, task(next))
	})
	p.UseFunc("retry", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		o, ok := resolve(req.Options.Retry, true, b.config.Retry)
		if !ok {
			return next(ctx, req)
		}
		return b.retry.ExecuteWith(ctx, req, o, task(next))
	})
	p.UseFunc("timeout", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		if req.Options.Timeout.Disabled() {
			return next(ctx, req)
		}
		d, ok := req.Options.Timeout.Value()
		if !ok || d <= 0 {
			d = b.config.Timeout
		}
		return b.timeout.ExecuteWith(ctx, req, d, task(next))
	})
	p.UseFunc("throttle", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		o, ok := resolve(req.Options.Throttle, true, b.config.Throttle)
		if !ok {
			return next(ctx, req)
		}
		return b.throttle.ExecuteWith(ctx, req, o, task(next))
	})
	p.UseFunc("defaultHandler", func(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
		return b.defaultHandler.Execute(ctx, req, task(next))
	})
}

// invalidate removes Options.Invalidate from the stack once the command succeeded.
func (b *Builder[R]) invalidate(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
	res, err := next(ctx, req)
	if err != nil || len(req.Options.Invalidate) == 0 {
		return res, err
	}
	if ierr := b.stack.Invalidator().InvalidateMany(ctx, req.Options.Invalidate); ierr != nil {
		b.logger.Warn("invalidating after command failed", "name", req.Name, "keys", req.Options.Invalidate, "error", ierr)
	}
	return res, nil
}

// onMutate runs Options.OnMutate with a scope whose invalidations are applied once the
// command settles, whether it succeeded or not.
func (b *Builder[R]) onMutate(ctx context.Context, req *taskguard.Request, next interceptor.Next[*taskguard.Request, R]) (R, error) {
	if req.Options.OnMutate == nil {
		return next(ctx, req)
	}

	scope := newMutationScope(b.stack)
	defer scope.flush(context.WithoutCancel(ctx), b.logger)

	if err := req.Options.OnMutate(ctx, scope); err != nil {
		var zero R
		return zero, err
	}
	return next(ctx, req)
}

// resolve applies the toggle rules: disabled skips, an explicit value is merged with the
// defaults, and the zero toggle uses the defaults if the strategy is enabled by default.
func resolve[T interface{ Merge(T) T }](t taskguard.Toggle[T], enabledByDefault bool, defaults T) (T, bool) {
	if t.Disabled() {
		return defaults, false
	}
	if v, ok := t.Value(); ok {
		return v.Merge(defaults), true
	}
	return defaults, enabledByDefault
}

func task[R any](next interceptor.Next[*taskguard.Request, R]) taskguard.Task[R] {
	return taskguard.Task[R](next)
}
