package cachestack_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/cachestack"
	"github.com/karupanerura/taskguard/storage"
	"github.com/karupanerura/taskguard/storage/memstorage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var errBackend = errors.New("backend down")

// brokenStorage fails every operation except the key listing used by the initial sweep.
func brokenStorage() taskguard.Storage {
	return &storage.FunctionsStorage{
		GetItemFunc:    func(context.Context, string) (string, bool, error) { return "", false, errBackend },
		SetItemFunc:    func(context.Context, string, string) error { return errBackend },
		RemoveItemFunc: func(context.Context, string) error { return errBackend },
		ClearFunc:      func(context.Context) error { return errBackend },
		LengthFunc:     func(context.Context) (int, error) { return 0, nil },
	}
}

type fixture struct {
	stack *cachestack.Stack[string]
	l1    *cache.Cache[string]
	l2    *cache.Cache[string]
	clock *taskguard.ManualClock
}

func newFixture(t *testing.T, l1, l2 taskguard.Storage) *fixture {
	t.Helper()
	if l1 == nil {
		l1 = memstorage.New()
	}
	if l2 == nil {
		l2 = memstorage.New()
	}
	clock := taskguard.NewManualClock(epoch)
	tier := func(name string, s taskguard.Storage) *cache.Cache[string] {
		return cache.New[string](s,
			cache.WithName[string](name),
			cache.WithClock[string](clock),
			cache.WithGCInterval[string](0),
			cache.WithDefaultFreshness[string](time.Minute),
			cache.WithDefaultRetention[string](time.Hour),
		)
	}
	f := &fixture{l1: tier("l1", l1), l2: tier("l2", l2), clock: clock}
	f.stack = cachestack.New([]*cache.Cache[string]{f.l1, f.l2})
	t.Cleanup(f.stack.Disconnect)
	return f
}

type recorder struct {
	mu     sync.Mutex
	events []taskguard.Event
}

func (r *recorder) listener(ev taskguard.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) get() []taskguard.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]taskguard.Event(nil), r.events...)
}

func TestNew_Panics(t *testing.T) {
	t.Parallel()

	for name, tiers := range map[string]func() []*cache.Cache[string]{
		"empty": func() []*cache.Cache[string] { return nil },
		"duplicate": func() []*cache.Cache[string] {
			a := cache.New[string](memstorage.New(), cache.WithName[string]("x"), cache.WithGCInterval[string](0))
			b := cache.New[string](memstorage.New(), cache.WithName[string]("x"), cache.WithGCInterval[string](0))
			return []*cache.Cache[string]{a, b}
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			cachestack.New(tiers())
		})
	}
}

func TestStack_Tier(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	if f.stack.Tier("l2") != f.l2 {
		t.Error("Tier(l2) returned the wrong tier")
	}
	if f.stack.Tier("l3") != nil {
		t.Error("Tier(l3) should be nil")
	}
}

func TestReader_Promotion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	ctx := t.Context()

	if err := f.l2.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	seeded, err := f.l2.GetEntry(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)

	got := f.stack.Reader().Get(ctx, "k")
	if diff := cmp.Diff(&taskguard.Result[string]{Value: "v"}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}

	promoted, err := f.l1.GetEntry(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seeded, promoted); diff != "" {
		t.Errorf("promotion re-timed the entry (-want +got):\n%s", diff)
	}

	// The second read is served by the fast tier alone.
	if err := f.l2.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if got := f.stack.Reader().Get(ctx, "k"); got == nil || got.Value != "v" {
		t.Errorf("second read = %v", got)
	}
}

func TestReader_SkipsFailingTier(t *testing.T) {
	t.Parallel()

	f := newFixture(t, brokenStorage(), nil)
	ctx := t.Context()
	if err := f.l2.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}

	if got := f.stack.Reader().Get(ctx, "k"); got == nil || got.Value != "v" {
		t.Errorf("Get() = %v, want v from l2", got)
	}
	if got := f.stack.Reader().Get(ctx, "missing"); got != nil {
		t.Errorf("Get(missing) = %v", got)
	}
}

func TestWriter(t *testing.T) {
	t.Parallel()

	t.Run("AllTiers", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil, nil)
		ctx := t.Context()
		if err := f.stack.Writer().Set(ctx, "k", "v", cache.WithFreshness(0)); err != nil {
			t.Fatal(err)
		}
		for _, tier := range []*cache.Cache[string]{f.l1, f.l2} {
			got, err := tier.Get(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(&taskguard.Result[string]{Value: "v", IsStale: true}, got); diff != "" {
				t.Errorf("%s (-want +got):\n%s", tier.Name(), diff)
			}
		}
	})

	t.Run("PartialFailure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, brokenStorage(), nil)
		if err := f.stack.Writer().Set(t.Context(), "k", "v"); err != nil {
			t.Errorf("partial failure surfaced: %v", err)
		}
		if got, _ := f.l2.Get(t.Context(), "k"); got == nil {
			t.Error("healthy tier was not written")
		}
	})

	t.Run("AllFailed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, brokenStorage(), brokenStorage())
		err := f.stack.Writer().Set(t.Context(), "k", "v")
		if !errors.Is(err, cachestack.ErrAllTiersFailed) || !errors.Is(err, errBackend) {
			t.Errorf("Set() error = %v", err)
		}
	})
}

func TestInvalidator(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	ctx := t.Context()
	var rec recorder
	f.stack.Emitter().On(taskguard.EventInvalidated, rec.listener)

	mustSet := func(c *cache.Cache[string], key string, opts ...cache.SetOption) {
		t.Helper()
		if err := c.Set(ctx, key, key, opts...); err != nil {
			t.Fatal(err)
		}
	}
	mustSet(f.l1, "user:1")
	mustSet(f.l2, "user:2")
	mustSet(f.l2, "post:1")

	keys, err := f.stack.Invalidator().InvalidatePattern(ctx, regexp.MustCompile(`^user:`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"user:1", "user:2"}, keys); diff != "" {
		t.Errorf("unexpected invalidated keys (-want +got):\n%s", diff)
	}
	// Each key is invalidated on both tiers.
	if got := len(rec.get()); got != 4 {
		t.Errorf("got %d invalidated events, want 4", got)
	}
	if got := f.stack.Reader().Get(ctx, "post:1"); got == nil {
		t.Error("non-matching key was invalidated")
	}

	mustSet(f.l1, "stale", cache.WithFreshness(time.Second))
	mustSet(f.l2, "fresh", cache.WithFreshness(time.Hour))
	f.clock.Advance(2 * time.Second)

	keys, err = f.stack.Invalidator().InvalidateStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"stale"}, keys); diff != "" {
		t.Errorf("unexpected stale keys (-want +got):\n%s", diff)
	}
	if got := f.stack.Reader().Get(ctx, "fresh"); got == nil {
		t.Error("fresh key was invalidated")
	}
}

func TestInvalidator_ManySkipsDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	var rec recorder
	f.stack.Emitter().On(taskguard.EventInvalidated, rec.listener)

	if err := f.stack.Invalidator().InvalidateMany(t.Context(), []string{"a", "b", "a", "a"}); err != nil {
		t.Fatal(err)
	}

	got := map[string]int{}
	for _, ev := range rec.get() {
		got[ev.Key]++
	}
	// One event per tier for each distinct key.
	if diff := cmp.Diff(map[string]int{"a": 2, "b": 2}, got); diff != "" {
		t.Errorf("invalidated events per key (-want +got):\n%s", diff)
	}
}

func TestCleaner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, brokenStorage())
	ctx := t.Context()
	var rec recorder
	f.stack.Emitter().On(taskguard.EventRemoved, rec.listener)

	if err := f.l1.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := f.stack.Cleaner().Delete(ctx, "k"); err != nil {
		t.Errorf("partial failure surfaced: %v", err)
	}
	if got, _ := f.l1.Get(ctx, "k"); got != nil {
		t.Errorf("l1 still holds %v", got)
	}
	if diff := cmp.Diff([]taskguard.Event{{Type: taskguard.EventRemoved, Key: "k", Tier: "l1"}}, rec.get()); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestEmitter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	var rec recorder
	f.l2.Disconnect()

	unsubscribe := f.stack.Emitter().On(taskguard.EventCleared, rec.listener)
	f.stack.Emitter().Emit(taskguard.EventCleared, "")
	unsubscribe()
	f.stack.Emitter().Emit(taskguard.EventCleared, "")

	if diff := cmp.Diff([]taskguard.Event{{Type: taskguard.EventCleared, Tier: "l1"}}, rec.get()); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}
