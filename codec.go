package taskguard

import (
	"encoding/json"
	"fmt"
)

// Codec converts cache entries to and from the string form kept in a Storage.
type Codec[V any] interface {
	Encode(*CacheEntry[V]) (string, error)
	Decode(string) (*CacheEntry[V], error)
}

// JSONCodec is the default codec. It requires V to round-trip through encoding/json.
type JSONCodec[V any] struct{}

var _ Codec[struct{}] = JSONCodec[struct{}]{}

// Encode marshals the entry as JSON.
func (JSONCodec[V]) Encode(e *CacheEntry[V]) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode cache entry %q: %w", e.Key, err)
	}
	return string(b), nil
}

// Decode unmarshals a JSON entry.
func (JSONCodec[V]) Decode(s string) (*CacheEntry[V], error) {
	var e CacheEntry[V]
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}
