package iterutil_test

import (
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/taskguard/internal/iterutil"
)

func TestUnion(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name   string
		inputs [][]string
		want   []string
	}{
		{name: "empty", inputs: [][]string{}, want: nil},
		{name: "single empty slice", inputs: [][]string{{}}, want: nil},
		{name: "single", inputs: [][]string{{"a", "b"}}, want: []string{"a", "b"}},
		{name: "overlapping tiers", inputs: [][]string{{"a", "b"}, {"b", "c"}}, want: []string{"a", "b", "c"}},
		{name: "duplicates within one input", inputs: [][]string{{"a", "a"}, {"a"}}, want: []string{"a"}},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			iters := make([]iter.Seq[string], 0, len(tt.inputs))
			for _, input := range tt.inputs {
				iters = append(iters, slices.Values(input))
			}
			got := slices.Collect(iterutil.Union(iters...))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnion_StopsEarly(t *testing.T) {
	t.Parallel()

	var got []string
	for v := range iterutil.Union(slices.Values([]string{"a", "b"}), slices.Values([]string{"c"})) {
		got = append(got, v)
		if v == "b" {
			break
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestUniq(t *testing.T) {
	t.Parallel()

	got := slices.Collect(iterutil.Uniq(slices.Values([]int{3, 1, 3, 2, 1})))
	if diff := cmp.Diff([]int{3, 1, 2}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	keys := slices.Values([]string{"user:1", "post:1", "user:2"})
	got := slices.Collect(iterutil.Filter(keys, func(k string) bool { return strings.HasPrefix(k, "user:") }))
	if diff := cmp.Diff([]string{"user:1", "user:2"}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}
