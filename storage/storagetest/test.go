// storagetest package provides generic test cases for taskguard.Storage implementations.
package storagetest

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/taskguard"
	"golang.org/x/sync/errgroup"
)

// BenchmarkSetItem benchmarks the SetItem method of the storage.
func BenchmarkSetItem(b *testing.B, storage taskguard.Storage, keys []string) {
	ctx := b.Context()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = storage.SetItem(ctx, keys[i%len(keys)], "value")
	}
}

type pair struct {
	Key   string
	Value string
}

func patterns() []pair {
	ps := []pair{
		{"a", "1"},
		{"b", "2"},
		{"user:1", `{"name":"alice"}`},
		{"user:2", `{"name":"bob"}`},
		{"getUser:{id:1}", "x"},
		{"", "empty key"},
		{"unicode:日本", "値"},
		{"long", strings.Repeat("x", 4096)},
	}
	rand.Shuffle(len(ps), func(i, j int) {
		ps[i], ps[j] = ps[j], ps[i]
	})
	return ps
}

// TestConsistency runs the storage contract against storages created by provider.
// The provider returns a fresh, empty storage and a release function.
func TestConsistency(t *testing.T, provider func() (taskguard.Storage, func())) {
	t.Run("Consistency", func(t *testing.T) {
		t.Parallel()

		t.Run("SetAndGet", func(t *testing.T) {
			t.Parallel()

			storage, release := provider()
			defer release()

			ps := patterns()
			var eg errgroup.Group
			for _, p := range ps {
				p := p
				eg.Go(func() error {
					_, ok, err := storage.GetItem(t.Context(), p.Key)
					if err != nil {
						return err
					} else if ok {
						return fmt.Errorf("unexpected exists value for key %q", p.Key)
					}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}

			eg = errgroup.Group{}
			for _, p := range ps {
				p := p
				eg.Go(func() error {
					return storage.SetItem(t.Context(), p.Key, p.Value)
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}

			eg = errgroup.Group{}
			got := make([]pair, len(ps))
			for i, p := range ps {
				i, p := i, p
				eg.Go(func() error {
					v, ok, err := storage.GetItem(t.Context(), p.Key)
					if err != nil {
						return err
					} else if !ok {
						return fmt.Errorf("missing value for key %q", p.Key)
					}
					got[i] = pair{Key: p.Key, Value: v}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}
			if df := cmp.Diff(ps, got); df != "" {
				t.Errorf("pairs diff=%s", df)
			}
		})

		t.Run("Overwrite", func(t *testing.T) {
			t.Parallel()

			storage, release := provider()
			defer release()

			var eg errgroup.Group
			for i := range 16 {
				i := i
				eg.Go(func() error {
					return storage.SetItem(t.Context(), "k", strconv.Itoa(i))
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}
			if err := storage.SetItem(t.Context(), "k", "final"); err != nil {
				t.Fatal(err)
			}

			v, ok, err := storage.GetItem(t.Context(), "k")
			if err != nil {
				t.Fatal(err)
			}
			if !ok || v != "final" {
				t.Errorf("got %q, %v; want final", v, ok)
			}
			if n, err := storage.Length(t.Context()); err != nil {
				t.Fatal(err)
			} else if n != 1 {
				t.Errorf("Length() = %d, want 1", n)
			}
		})

		t.Run("RemoveAndClear", func(t *testing.T) {
			t.Parallel()

			storage, release := provider()
			defer release()

			for _, p := range patterns() {
				if err := storage.SetItem(t.Context(), p.Key, p.Value); err != nil {
					t.Fatal(err)
				}
			}

			if err := storage.RemoveItem(t.Context(), "a"); err != nil {
				t.Fatal(err)
			}
			if _, ok, err := storage.GetItem(t.Context(), "a"); err != nil {
				t.Fatal(err)
			} else if ok {
				t.Error("removed key still exists")
			}
			if err := storage.RemoveItem(t.Context(), "missing"); err != nil {
				t.Errorf("removing a missing key must not fail: %v", err)
			}

			if err := storage.Clear(t.Context()); err != nil {
				t.Fatal(err)
			}
			if n, err := storage.Length(t.Context()); err != nil {
				t.Fatal(err)
			} else if n != 0 {
				t.Errorf("Length() after Clear = %d, want 0", n)
			}
		})

		t.Run("Keys", func(t *testing.T) {
			t.Parallel()

			storage, release := provider()
			defer release()

			ps := patterns()
			want := make([]string, 0, len(ps))
			for _, p := range ps {
				if err := storage.SetItem(t.Context(), p.Key, p.Value); err != nil {
					t.Fatal(err)
				}
				want = append(want, p.Key)
			}
			slices.Sort(want)

			n, err := storage.Length(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			if n != len(want) {
				t.Fatalf("Length() = %d, want %d", n, len(want))
			}

			got := make([]string, 0, n)
			for i := range n {
				k, ok, err := storage.Key(t.Context(), i)
				if err != nil {
					t.Fatal(err)
				} else if !ok {
					t.Fatalf("Key(%d) is out of range", i)
				}
				got = append(got, k)
			}
			slices.Sort(got)
			if df := cmp.Diff(want, got); df != "" {
				t.Errorf("keys diff=%s", df)
			}

			if _, ok, err := storage.Key(t.Context(), n); err != nil {
				t.Fatal(err)
			} else if ok {
				t.Errorf("Key(%d) must be out of range", n)
			}

			if lister, ok := storage.(taskguard.KeyLister); ok {
				all, err := lister.AllKeys(t.Context())
				if err != nil {
					t.Fatal(err)
				}
				slices.Sort(all)
				if df := cmp.Diff(want, all); df != "" {
					t.Errorf("AllKeys diff=%s", df)
				}
			}
		})
	})
}
