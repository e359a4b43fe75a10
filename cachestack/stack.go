// Package cachestack coordinates an ordered sequence of cache tiers, fastest first.
//
// The operations are grouped by responsibility: Reader, Writer, Invalidator, Cleaner,
// Emitter and Optimistic, plus Accessor which combines them into GetOrSet with
// stale-while-revalidate. Fan-out operations tolerate partial failure: a failing tier
// is logged and skipped, and an error is returned only when every tier failed.
package cachestack

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/internal/panicutil"
	"github.com/karupanerura/taskguard/metrics"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
)

// ErrAllTiersFailed is returned when an operation failed on every tier.
var ErrAllTiersFailed = errors.New("cachestack: all tiers failed")

// Stack is an ordered set of named tiers holding the same key space.
type Stack[V any] struct {
	tiers   []*cache.Cache[V]
	logger  *slog.Logger
	metrics *metrics.Collector

	background   conc.WaitGroup
	mu           sync.Mutex
	revalidating map[string]struct{}
}

// New creates a stack over tiers ordered fastest first. It panics if tiers is empty
// or two tiers share a name.
func New[V any](tiers []*cache.Cache[V], opts ...Option) *Stack[V] {
	if len(tiers) == 0 {
		panic("cachestack: at least one tier is required")
	}
	seen := make(map[string]struct{}, len(tiers))
	for _, t := range tiers {
		if _, dup := seen[t.Name()]; dup {
			panic(fmt.Sprintf("cachestack: duplicate tier name %q", t.Name()))
		}
		seen[t.Name()] = struct{}{}
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Stack[V]{
		tiers:        tiers,
		logger:       o.logger,
		metrics:      o.metrics,
		revalidating: map[string]struct{}{},
	}
}

// Tiers returns the tiers, fastest first.
func (s *Stack[V]) Tiers() []*cache.Cache[V] {
	return s.tiers
}

// Tier returns the tier with the given name, or nil.
func (s *Stack[V]) Tier(name string) *cache.Cache[V] {
	for _, t := range s.tiers {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Reader returns the read operations, which scan the tiers fastest first and promote hits.
func (s *Stack[V]) Reader() Reader[V] {
	return Reader[V]{s}
}

// Writer returns the write operations, which fan out to every tier.
func (s *Stack[V]) Writer() Writer[V] {
	return Writer[V]{s}
}

// Invalidator returns the explicit invalidation operations.
func (s *Stack[V]) Invalidator() Invalidator[V] {
	return Invalidator[V]{s}
}

// Cleaner returns the delete and clear operations.
func (s *Stack[V]) Cleaner() Cleaner[V] {
	return Cleaner[V]{s}
}

// Emitter returns the event operations spanning every tier.
func (s *Stack[V]) Emitter() Emitter[V] {
	return Emitter[V]{s}
}

// Optimistic returns the optimistic update and delete operations.
func (s *Stack[V]) Optimistic() Optimistic[V] {
	return Optimistic[V]{s}
}

// Accessor returns the get-or-set operations.
func (s *Stack[V]) Accessor() Accessor[V] {
	return Accessor[V]{s}
}

// Wait blocks until every background revalidation has finished.
func (s *Stack[V]) Wait() {
	s.background.Wait()
}

// Disconnect waits for background work and then disconnects every tier.
func (s *Stack[V]) Disconnect() {
	s.Wait()
	s.Emitter().Disconnect()
}

// fanOut runs f on every tier concurrently and settles the outcomes.
func (s *Stack[V]) fanOut(op, key string, f func(*cache.Cache[V]) error) error {
	errs := iter.Map(s.tiers, func(t **cache.Cache[V]) error {
		return panicutil.Run(func() error { return f(*t) })
	})
	return s.settle(op, key, errs)
}

// settle logs every per-tier failure. It returns an error wrapping ErrAllTiersFailed
// only if no tier succeeded.
func (s *Stack[V]) settle(op, key string, errs []error) error {
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		tier := s.tiers[i].Name()
		s.metrics.RecordTierError(tier, op)
		s.logger.Warn("tier operation failed", "operation", op, "tier", tier, "key", key, "error", err)
	}
	if failed == 0 || failed < len(errs) {
		return nil
	}

	err := fmt.Errorf("%w: %s %q: %w", ErrAllTiersFailed, op, key, errors.Join(errs...))
	s.logger.Error("all tiers failed", "operation", op, "key", key, "error", err)
	return err
}

// goBackground runs f tracked by Wait. Errors and panics are passed to onError.
func (s *Stack[V]) goBackground(f func() error, onError func(error)) {
	panicutil.Go(&s.background, f, onError)
}
