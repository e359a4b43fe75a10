package cachestack

import (
	"log/slog"

	"github.com/karupanerura/taskguard/metrics"
)

// Option configures a Stack.
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
}

// WithLogger sets the logger receiving per-tier failures. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithMetrics counts per-tier failures in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return optionFunc(func(o *options) {
		o.metrics = collector
	})
}
