package strategy

import (
	"log/slog"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/metrics"
)

// Option configures a strategy.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	clock   taskguard.Clock

	hardTimeout bool

	fastTier string
	slowTier string
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		clock:    taskguard.SystemClock,
		fastTier: "l1",
		slowTier: "l2",
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithMetrics counts strategy outcomes in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return optionFunc(func(o *options) {
		o.metrics = collector
	})
}

// WithClock sets the clock Throttle measures its window with.
func WithClock(clock taskguard.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = clock
	})
}

// WithHardTimeout makes Timeout cancel the task's context when the budget is exceeded.
// By default the task keeps running and its late result is discarded.
func WithHardTimeout() Option {
	return optionFunc(func(o *options) {
		o.hardTimeout = true
	})
}

// WithTierNames sets the stack tiers Cache writes to: fast always, slow when persisting.
// The defaults are "l1" and "l2".
func WithTierNames(fast, slow string) Option {
	return optionFunc(func(o *options) {
		o.fastTier = fast
		o.slowTier = slow
	})
}
