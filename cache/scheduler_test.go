package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karupanerura/taskguard/cache"
)

func TestScheduler(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := cache.NewScheduler(5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	s.Start()
	s.Start()
	waitUntil(t, func() bool { return calls.Load() >= 3 })

	s.Stop()
	s.Stop()
	stoppedAt := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != stoppedAt {
		t.Errorf("task ran after Stop: %d -> %d", stoppedAt, got)
	}

	s.Start()
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != stoppedAt {
		t.Errorf("stopped scheduler restarted: %d -> %d", stoppedAt, got)
	}
}

func TestScheduler_ErrorsAndPanics(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		errs []error
		tick atomic.Int32
	)
	boom := errors.New("boom")
	s := cache.NewScheduler(5*time.Millisecond, func(context.Context) error {
		if tick.Add(1)%2 == 0 {
			panic("sweep crashed")
		}
		return boom
	}, cache.WithErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}))
	s.Start()
	defer s.Stop()

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(errs[0], boom) {
		t.Errorf("first error = %v, want boom", errs[0])
	}
	if errs[1] == nil || errors.Is(errs[1], boom) {
		t.Errorf("second error = %v, want recovered panic", errs[1])
	}
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	t.Parallel()

	s := cache.NewScheduler(time.Millisecond, func(context.Context) error {
		t.Error("task must not run")
		return nil
	})
	s.Stop()
	s.Start()
	time.Sleep(10 * time.Millisecond)
}
