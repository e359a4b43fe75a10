package resilience_test

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/cachestack"
	"github.com/karupanerura/taskguard/interceptor"
	"github.com/karupanerura/taskguard/resilience"
	"github.com/karupanerura/taskguard/storage/memstorage"
)

func newStack(t *testing.T) *cachestack.Stack[string] {
	t.Helper()
	tier := func(name string) *cache.Cache[string] {
		return cache.New[string](memstorage.New(), cache.WithName[string](name), cache.WithGCInterval[string](0))
	}
	stack := cachestack.New([]*cache.Cache[string]{tier("l1"), tier("l2")})
	t.Cleanup(stack.Disconnect)
	return stack
}

// testConfig keeps the defaults but retries quickly.
func testConfig() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.Retry.Delay = taskguard.Ptr(time.Millisecond)
	return cfg
}

func newBuilder(t *testing.T, opts ...resilience.Option[string]) *resilience.Builder[string] {
	t.Helper()
	opts = append([]resilience.Option[string]{resilience.WithConfig[string](testConfig())}, opts...)
	b := resilience.NewBuilder(newStack(t), opts...)
	t.Cleanup(b.Disconnect)
	return b
}

func next(task taskguard.Task[string]) interceptor.Next[*taskguard.Request, string] {
	return interceptor.Next[*taskguard.Request, string](task)
}

func counting(value string, err error) (taskguard.Task[string], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context, *taskguard.Request) (string, error) {
		calls.Add(1)
		return value, err
	}, &calls
}

func TestBuilder_Order(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)

	query := resilience.Pipeline[string]{}
	b.Query(&query)
	want := []string{"dedup", "cache", "fallback", "retry", "timeout", "throttle", "defaultHandler"}
	if diff := cmp.Diff(want, query.Names()); diff != "" {
		t.Errorf("query pipeline (-want +got):\n%s", diff)
	}

	command := resilience.Pipeline[string]{}
	b.Command(&command)
	want = []string{"dedup", "fallback", "retry", "timeout", "throttle", "defaultHandler", "invalidate", "onMutate"}
	if diff := cmp.Diff(want, command.Names()); diff != "" {
		t.Errorf("command pipeline (-want +got):\n%s", diff)
	}
}

func TestBuilder_QueryIsCached(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)
	var p resilience.Pipeline[string]
	b.Query(&p)

	task, calls := counting("v", nil)
	req := &taskguard.Request{Name: "getUser", Payload: 1}
	for range 3 {
		if _, err := p.Execute(t.Context(), req, next(task)); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("task called %d times, want 1", calls.Load())
	}

	uncached := &taskguard.Request{Name: "getUser", Payload: 2, Options: taskguard.Options{Cache: taskguard.Disable[taskguard.CacheOptions]()}}
	for range 2 {
		if _, err := p.Execute(t.Context(), uncached, next(task)); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("task called %d times, want 3", calls.Load())
	}
}

func TestBuilder_RetryOptions(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	tests := []struct {
		name      string
		retry     taskguard.Toggle[taskguard.RetryOptions]
		wantCalls int32
	}{
		{name: "Default", wantCalls: 4},
		{name: "Disabled", retry: taskguard.Disable[taskguard.RetryOptions](), wantCalls: 1},
		{name: "MergedWithDefaults", retry: taskguard.Enable(taskguard.RetryOptions{MaxAttempts: taskguard.Ptr(1)}), wantCalls: 2},
		{name: "ExplicitZero", retry: taskguard.Enable(taskguard.RetryOptions{MaxAttempts: taskguard.Ptr(0)}), wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newBuilder(t)
			var p resilience.Pipeline[string]
			b.Command(&p)

			task, calls := counting("", errBoom)
			req := &taskguard.Request{Name: "save", Kind: taskguard.KindCommand, Options: taskguard.Options{Retry: tt.retry}}
			if _, err := p.Execute(t.Context(), req, next(task)); !errors.Is(err, errBoom) {
				t.Errorf("Execute() error = %v", err)
			}
			if n := calls.Load(); n != tt.wantCalls {
				t.Errorf("task called %d times, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestBuilder_FallbackAndDefaultHandler(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, resilience.WithDefaultHandler(func(_ context.Context, req *taskguard.Request) (string, error) {
		return "default:" + req.Name, nil
	}))
	var p resilience.Pipeline[string]
	b.Query(&p)

	noHandler := resilience.Handlers[string]{}.Task()
	got, err := p.Execute(t.Context(), &taskguard.Request{Name: "unknown"}, next(noHandler))
	if err != nil || got != "default:unknown" {
		t.Errorf("Execute() = %q, %v", got, err)
	}

	failing, _ := counting("", errors.New("boom"))
	req := &taskguard.Request{
		Name: "flaky",
		Options: taskguard.Options{
			Retry:    taskguard.Disable[taskguard.RetryOptions](),
			Fallback: func(context.Context, *taskguard.Request, error) (any, error) { return "fallback", nil },
		},
	}
	got, err = p.Execute(t.Context(), req, next(failing))
	if err != nil || got != "fallback" {
		t.Errorf("Execute() = %q, %v", got, err)
	}
}

func TestBuilder_Throttle(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)
	var p resilience.Pipeline[string]
	b.Command(&p)

	task, calls := counting("ok", nil)
	req := &taskguard.Request{
		Name: "send",
		Kind: taskguard.KindCommand,
		Options: taskguard.Options{
			Retry:    taskguard.Disable[taskguard.RetryOptions](),
			Throttle: taskguard.Enable(taskguard.ThrottleOptions{Rate: taskguard.Ptr(2)}),
		},
	}
	var errs []error
	for range 3 {
		_, err := p.Execute(t.Context(), req, next(task))
		errs = append(errs, err)
	}
	if errs[0] != nil || errs[1] != nil || !errors.Is(errs[2], taskguard.ErrThrottled) {
		t.Errorf("unexpected errors %v", errs)
	}
	if calls.Load() != 2 {
		t.Errorf("task called %d times, want 2", calls.Load())
	}
}

func TestBuilder_CommandInvalidates(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)
	ctx := t.Context()
	var p resilience.Pipeline[string]
	b.Command(&p)

	writer := b.Stack().Writer()
	for _, key := range []string{"user:1", "user:2", "post:1"} {
		if err := writer.Set(ctx, key, "cached"); err != nil {
			t.Fatal(err)
		}
	}

	errBoom := errors.New("boom")
	failing, _ := counting("", errBoom)
	req := &taskguard.Request{
		Name:    "updateUser",
		Kind:    taskguard.KindCommand,
		Options: taskguard.Options{Retry: taskguard.Disable[taskguard.RetryOptions](), Invalidate: []string{"user:1"}},
	}
	if _, err := p.Execute(ctx, req, next(failing)); !errors.Is(err, errBoom) {
		t.Fatal(err)
	}
	if b.Stack().Reader().Get(ctx, "user:1") == nil {
		t.Error("failed command invalidated its keys")
	}

	ok, _ := counting("ok", nil)
	if _, err := p.Execute(ctx, req, next(ok)); err != nil {
		t.Fatal(err)
	}
	if b.Stack().Reader().Get(ctx, "user:1") != nil {
		t.Error("successful command did not invalidate its keys")
	}
	if b.Stack().Reader().Get(ctx, "user:2") == nil {
		t.Error("unrelated key was invalidated")
	}
}

func TestBuilder_OnMutate(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)
	ctx := t.Context()
	var p resilience.Pipeline[string]
	b.Command(&p)

	writer := b.Stack().Writer()
	for _, key := range []string{"user:1", "user:2", "post:1"} {
		if err := writer.Set(ctx, key, "cached"); err != nil {
			t.Fatal(err)
		}
	}

	var seenDuringHandler bool
	handler := func(ctx context.Context, _ *taskguard.Request) (string, error) {
		seenDuringHandler = b.Stack().Reader().Get(ctx, "user:1") != nil
		return "ok", nil
	}
	req := &taskguard.Request{
		Name: "renameUser",
		Kind: taskguard.KindCommand,
		Options: taskguard.Options{
			OnMutate: func(ctx context.Context, scope taskguard.MutationScope) error {
				v, found, err := scope.Get(ctx, "post:1")
				if err != nil || !found || v != "cached" {
					t.Errorf("scope.Get() = %v, %v, %v", v, found, err)
				}
				if err := scope.Set(ctx, "post:1", 42); err == nil {
					t.Error("scope.Set() accepted a value of the wrong type")
				}
				scope.InvalidatePattern(regexp.MustCompile(`^user:`))
				return nil
			},
		},
	}
	if _, err := p.Execute(ctx, req, handler); err != nil {
		t.Fatal(err)
	}

	if !seenDuringHandler {
		t.Error("invalidation was applied before the command settled")
	}
	for _, key := range []string{"user:1", "user:2"} {
		if b.Stack().Reader().Get(ctx, key) != nil {
			t.Errorf("%s was not invalidated", key)
		}
	}
	if b.Stack().Reader().Get(ctx, "post:1") == nil {
		t.Error("post:1 was invalidated")
	}
}

func TestBuilder_OnMutateError(t *testing.T) {
	t.Parallel()

	b := newBuilder(t)
	var p resilience.Pipeline[string]
	b.Command(&p)

	errHook := errors.New("hook failed")
	task, calls := counting("ok", nil)
	req := &taskguard.Request{
		Name: "save",
		Kind: taskguard.KindCommand,
		Options: taskguard.Options{
			Retry:    taskguard.Disable[taskguard.RetryOptions](),
			OnMutate: func(context.Context, taskguard.MutationScope) error { return errHook },
		},
	}
	if _, err := p.Execute(t.Context(), req, next(task)); !errors.Is(err, errHook) {
		t.Errorf("Execute() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Error("handler ran after the hook failed")
	}
}
