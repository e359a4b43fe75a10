package cache

import (
	"log/slog"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/expiration"
	"github.com/karupanerura/taskguard/metrics"
)

const (
	// DefaultFreshnessWindow is used when neither the tier nor the write sets one.
	DefaultFreshnessWindow = 30 * time.Second

	// DefaultRetentionWindow is used when neither the tier nor the write sets one.
	DefaultRetentionWindow = 5 * time.Minute

	// DefaultGCInterval is how often defunct entries are swept.
	DefaultGCInterval = time.Minute
)

// Option configures a Cache.
type Option[V any] interface {
	apply(*options[V])
}

type optionFunc[V any] func(*options[V])

func (f optionFunc[V]) apply(o *options[V]) {
	f(o)
}

// WithName sets the tier name reported in events, logs and metrics.
func WithName[V any](name string) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.name = name
	})
}

// WithDefaultFreshness sets the freshness window of writes that do not set one.
func WithDefaultFreshness[V any](d time.Duration) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.freshness = d
	})
}

// WithDefaultRetention sets the retention window of writes that do not set one.
func WithDefaultRetention[V any](d time.Duration) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.retention = d
	})
}

// WithGCInterval sets the sweep interval. Zero or negative disables scheduled sweeps.
func WithGCInterval[V any](d time.Duration) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.gcInterval = d
	})
}

// WithClock sets the clock used to time entries.
func WithClock[V any](clock taskguard.Clock) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.clock = clock
	})
}

// WithCodec sets how entries are serialized into the storage.
func WithCodec[V any](codec taskguard.Codec[V]) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.codec = codec
	})
}

// WithStalePolicy sets the policy deciding whether a read reports an entry as stale.
func WithStalePolicy[V any](policy expiration.Policy) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.policy = policy
	})
}

// WithLogger sets the logger.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.logger = logger
	})
}

// WithMetrics sets the metrics collector.
func WithMetrics[V any](collector *metrics.Collector) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.metrics = collector
	})
}

type options[V any] struct {
	name       string
	freshness  time.Duration
	retention  time.Duration
	gcInterval time.Duration
	clock      taskguard.Clock
	codec      taskguard.Codec[V]
	policy     expiration.Policy
	logger     *slog.Logger
	metrics    *metrics.Collector
}

func defaultOptions[V any]() options[V] {
	return options[V]{
		name:       "cache",
		freshness:  DefaultFreshnessWindow,
		retention:  DefaultRetentionWindow,
		gcInterval: DefaultGCInterval,
		clock:      taskguard.SystemClock,
		codec:      taskguard.JSONCodec[V]{},
		policy:     expiration.GeneralPolicy{},
		logger:     slog.Default(),
	}
}

// SetOption overrides the tier defaults for one write.
type SetOption func(*setOptions)

type setOptions struct {
	freshness *time.Duration
	retention *time.Duration
}

// WithFreshness sets the freshness window of the written entry. Zero makes it stale immediately.
func WithFreshness(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.freshness = &d
	}
}

// WithRetention sets the retention window of the written entry.
func WithRetention(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.retention = &d
	}
}
