package memstorage

import (
	"context"
	"slices"
	"sync"

	"github.com/karupanerura/taskguard"
)

type bucket struct {
	m  map[string]string
	mu sync.RWMutex
}

// Storage is an in-memory taskguard.Storage that also implements taskguard.KeyLister.
// Key(i) indexes the sorted key set, so indexes are stable while no key is added or removed.
type Storage struct {
	buckets []*bucket
	options options
}

var (
	_ taskguard.Storage   = (*Storage)(nil)
	_ taskguard.KeyLister = (*Storage)(nil)
)

// New creates an empty in-memory storage.
func New(opts ...Option) *Storage {
	options := defaultOptions()
	for _, opt := range opts {
		opt.apply(&options)
	}

	buckets := make([]*bucket, options.bucketsSize)
	for i := range buckets {
		buckets[i] = &bucket{m: map[string]string{}}
	}
	return &Storage{
		buckets: buckets,
		options: options,
	}
}

func (s *Storage) resolveBucket(key string) *bucket {
	if len(s.buckets) == 1 {
		return s.buckets[0]
	}
	index := s.options.hashKey(key) % len(s.buckets)
	if index < 0 {
		index *= -1
	}
	return s.buckets[index]
}

func (s *Storage) GetItem(_ context.Context, key string) (string, bool, error) {
	b := s.resolveBucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.m[key]
	return v, ok, nil
}

func (s *Storage) SetItem(_ context.Context, key, value string) error {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.m[key] = value
	return nil
}

func (s *Storage) RemoveItem(_ context.Context, key string) error {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.m, key)
	return nil
}

func (s *Storage) Clear(_ context.Context) error {
	for _, b := range s.buckets {
		b.mu.Lock()
		clear(b.m)
		b.mu.Unlock()
	}
	return nil
}

func (s *Storage) Key(ctx context.Context, index int) (string, bool, error) {
	keys, _ := s.AllKeys(ctx)
	if index < 0 || index >= len(keys) {
		return "", false, nil
	}
	return keys[index], true, nil
}

func (s *Storage) Length(_ context.Context) (int, error) {
	n := 0
	for _, b := range s.buckets {
		b.mu.RLock()
		n += len(b.m)
		b.mu.RUnlock()
	}
	return n, nil
}

// AllKeys returns every key in sorted order.
func (s *Storage) AllKeys(_ context.Context) ([]string, error) {
	var keys []string
	for _, b := range s.buckets {
		b.mu.RLock()
		for k := range b.m {
			keys = append(keys, k)
		}
		b.mu.RUnlock()
	}
	slices.Sort(keys)
	return keys, nil
}
