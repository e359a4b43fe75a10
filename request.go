package taskguard

import (
	"context"
	"regexp"
	"time"

	"github.com/karupanerura/taskguard/fingerprint"
)

// Kind distinguishes read-only queries from mutating commands.
type Kind int

const (
	KindQuery Kind = iota
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Request is a named unit of work flowing through an interceptor pipeline.
type Request struct {
	// ID identifies the request for cancellation. The executor assigns one if empty.
	ID string

	// Name is the logical request name (the handler it is routed to).
	Name string

	Kind    Kind
	Payload any
	Options Options
}

// Fingerprint returns the deterministic key of the request's name and payload.
func (r *Request) Fingerprint() string {
	return fingerprint.Key(r.Name, r.Payload)
}

// DefaultSerializer derives strategy keys from the request fingerprint.
func DefaultSerializer(r *Request) string {
	return r.Fingerprint()
}

// Serializer derives the key identifying "the same logical request".
type Serializer func(*Request) string

// FallbackFunc produces a substitute result for a failed request.
// The returned value must be assignable to the pipeline's result type.
type FallbackFunc func(ctx context.Context, req *Request, err error) (any, error)

// MutationScope is the cache handle passed to Options.OnMutate.
// Invalidations requested through it are applied once the command settles.
type MutationScope interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(keys ...string)
	InvalidatePattern(pattern *regexp.Regexp)
}

// Options are the per-request resilience settings.
// A zero Toggle uses the builder default, Disable skips the strategy and Enable
// merges its value with the defaults.
type Options struct {
	Dedup    Toggle[DedupOptions]
	Cache    Toggle[CacheOptions]
	Retry    Toggle[RetryOptions]
	Timeout  Toggle[time.Duration]
	Throttle Toggle[ThrottleOptions]

	// Fallback substitutes a result when the request fails.
	Fallback FallbackFunc

	// Invalidate lists cache keys a command invalidates after it succeeds.
	Invalidate []string

	// OnMutate runs before a command's handler with a scoped cache handle.
	OnMutate func(ctx context.Context, scope MutationScope) error
}

type toggleMode uint8

const (
	toggleDefault toggleMode = iota
	toggleDisabled
	toggleEnabled
)

// Toggle is a tri-state strategy setting: default, disabled or explicitly configured.
type Toggle[T any] struct {
	mode  toggleMode
	value T
}

// Enable returns a toggle configured with v.
func Enable[T any](v T) Toggle[T] {
	return Toggle[T]{mode: toggleEnabled, value: v}
}

// Disable returns a toggle that turns the strategy off.
func Disable[T any]() Toggle[T] {
	return Toggle[T]{mode: toggleDisabled}
}

// Disabled reports whether the strategy is turned off.
func (t Toggle[T]) Disabled() bool {
	return t.mode == toggleDisabled
}

// Value returns the configured value, if any.
func (t Toggle[T]) Value() (T, bool) {
	return t.value, t.mode == toggleEnabled
}

// DedupOptions configures request deduplication.
type DedupOptions struct {
	Serialize Serializer
}

// Merge fills zero fields from defaults.
func (o DedupOptions) Merge(defaults DedupOptions) DedupOptions {
	if o.Serialize == nil {
		o.Serialize = defaults.Serialize
	}
	return o
}

// CacheOptions configures result caching.
// Nil window fields take the defaults; an explicit zero freshness window makes
// every cached result stale immediately.
type CacheOptions struct {
	FreshnessWindow *time.Duration
	RetentionWindow *time.Duration

	// Persist also writes results to the slow tier.
	Persist bool

	Serialize Serializer

	// Invalidate forces the task to run and overwrite any cached result.
	Invalidate bool
}

// Merge fills unset fields from defaults. Boolean fields are enabled if either side enables them.
func (o CacheOptions) Merge(defaults CacheOptions) CacheOptions {
	if o.FreshnessWindow == nil {
		o.FreshnessWindow = defaults.FreshnessWindow
	}
	if o.RetentionWindow == nil {
		o.RetentionWindow = defaults.RetentionWindow
	}
	if o.Serialize == nil {
		o.Serialize = defaults.Serialize
	}
	o.Persist = o.Persist || defaults.Persist
	o.Invalidate = o.Invalidate || defaults.Invalidate
	return o
}

// RetryOptions configures retries with linear backoff.
type RetryOptions struct {
	// MaxAttempts is the number of retries after the first try. Zero disables retrying.
	MaxAttempts *int

	// Delay is the base backoff; retry n waits Delay*n.
	Delay *time.Duration

	// NonRetryable errors (matched with errors.Is) are returned immediately.
	NonRetryable []error
}

// Merge fills unset fields from defaults.
func (o RetryOptions) Merge(defaults RetryOptions) RetryOptions {
	if o.MaxAttempts == nil {
		o.MaxAttempts = defaults.MaxAttempts
	}
	if o.Delay == nil {
		o.Delay = defaults.Delay
	}
	if o.NonRetryable == nil {
		o.NonRetryable = defaults.NonRetryable
	}
	return o
}

// ThrottleOptions configures the sliding-window rate limiter.
type ThrottleOptions struct {
	Interval  *time.Duration
	Rate      *int
	Serialize Serializer
}

// Merge fills unset fields from defaults.
func (o ThrottleOptions) Merge(defaults ThrottleOptions) ThrottleOptions {
	if o.Interval == nil {
		o.Interval = defaults.Interval
	}
	if o.Rate == nil {
		o.Rate = defaults.Rate
	}
	if o.Serialize == nil {
		o.Serialize = defaults.Serialize
	}
	return o
}

// Ptr returns a pointer to v, for setting option fields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or fallback when p is nil.
func Deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
