package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cachestack"
)

// mutationScope is the taskguard.MutationScope handed to Options.OnMutate.
// Reads and writes go straight to the stack; invalidations wait for flush.
type mutationScope[R any] struct {
	stack *cachestack.Stack[R]

	mu       sync.Mutex
	keys     []string
	patterns []*regexp.Regexp
}

var _ taskguard.MutationScope = (*mutationScope[struct{}])(nil)

func newMutationScope[R any](stack *cachestack.Stack[R]) *mutationScope[R] {
	return &mutationScope[R]{stack: stack}
}

func (s *mutationScope[R]) Get(ctx context.Context, key string) (any, bool, error) {
	r := s.stack.Reader().Get(ctx, key)
	if r == nil {
		return nil, false, nil
	}
	return r.Value, true, nil
}

func (s *mutationScope[R]) Set(ctx context.Context, key string, value any) error {
	v, ok := value.(R)
	if !ok {
		var zero R
		return fmt.Errorf("cache value for %q is %T, want %T", key, value, zero)
	}
	return s.stack.Writer().Set(ctx, key, v)
}

func (s *mutationScope[R]) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, keys...)
}

func (s *mutationScope[R]) InvalidatePattern(pattern *regexp.Regexp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
}

// flush applies the deferred invalidations. Failures are logged.
func (s *mutationScope[R]) flush(ctx context.Context, logger *slog.Logger) {
	s.mu.Lock()
	keys, patterns := s.keys, s.patterns
	s.keys, s.patterns = nil, nil
	s.mu.Unlock()

	invalidator := s.stack.Invalidator()
	if err := invalidator.InvalidateMany(ctx, keys); err != nil {
		logger.Warn("deferred invalidation failed", "keys", keys, "error", err)
	}
	for _, p := range patterns {
		if _, err := invalidator.InvalidatePattern(ctx, p); err != nil {
			logger.Warn("deferred invalidation failed", "pattern", p.String(), "error", err)
		}
	}
}
