package resilience

import (
	"log/slog"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/metrics"
)

// Option configures a Builder.
type Option[R any] interface {
	apply(*options[R])
}

type optionFunc[R any] func(*options[R])

func (f optionFunc[R]) apply(o *options[R]) {
	f(o)
}

type options[R any] struct {
	config         Config
	logger         *slog.Logger
	metrics        *metrics.Collector
	clock          taskguard.Clock
	defaultHandler taskguard.Task[R]
	throttleStore  *cache.Cache[[]int64]
	hardTimeout    bool
}

// WithConfig sets the builder defaults. The default is DefaultConfig().
func WithConfig[R any](cfg Config) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.config = cfg
	})
}

// WithLogger sets the logger shared by every strategy.
func WithLogger[R any](logger *slog.Logger) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.logger = logger
	})
}

// WithMetrics sets the collector shared by every strategy.
func WithMetrics[R any](collector *metrics.Collector) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.metrics = collector
	})
}

// WithClock sets the clock of the throttle window.
func WithClock[R any](clock taskguard.Clock) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.clock = clock
	})
}

// WithDefaultHandler routes requests without a registered handler to h.
func WithDefaultHandler[R any](h taskguard.Task[R]) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.defaultHandler = h
	})
}

// WithThrottleStore keeps throttle windows in store instead of a private in-memory tier.
func WithThrottleStore[R any](store *cache.Cache[[]int64]) Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.throttleStore = store
	})
}

// WithHardTimeout cancels the task's context when it exceeds its timeout.
func WithHardTimeout[R any]() Option[R] {
	return optionFunc[R](func(o *options[R]) {
		o.hardTimeout = true
	})
}
