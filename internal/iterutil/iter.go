package iterutil

import (
	"iter"
)

// Union yields every value present in any of the input iterators, once, in first-seen order.
func Union[V comparable](iters ...iter.Seq[V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		seen := map[V]struct{}{}
		for _, seq := range iters {
			for v := range seq {
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Uniq yields the unique values of seq in input order.
func Uniq[V comparable](seq iter.Seq[V]) iter.Seq[V] {
	return Union(seq)
}

// Filter yields the values of seq for which keep returns true.
func Filter[V any](seq iter.Seq[V], keep func(V) bool) iter.Seq[V] {
	return func(yield func(V) bool) {
		for v := range seq {
			if keep(v) && !yield(v) {
				return
			}
		}
	}
}
