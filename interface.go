package taskguard

import (
	"context"
)

// Storage is the key/value contract of a cache tier backend.
// Keys and values are strings; the cache encodes entries before storing them.
// Implementations must be thread-safe.
type Storage interface {
	// GetItem retrieves the value stored under the key.
	// It returns false if the key does not exist.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores the value under the key, overwriting any existing value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem removes the key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Key returns the name of the key at the given index.
	// It returns false if the index is out of range.
	Key(ctx context.Context, index int) (string, bool, error)

	// Length returns the number of stored keys.
	Length(ctx context.Context) (int, error)
}

// KeyLister is an optional interface for storages that can list every key at once.
// The cache uses it instead of iterating Key(i) when available.
type KeyLister interface {
	AllKeys(ctx context.Context) ([]string, error)
}

// SyncStorage is the synchronous, infallible shape of the storage contract
// (e.g. a process-local map). Use storage.FromSync to adapt it to Storage.
type SyncStorage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
	Clear()
	Key(index int) (string, bool)
	Length() int
}

// Task is a unit of work executed for a request.
type Task[R any] func(ctx context.Context, req *Request) (R, error)

// Strategy wraps a task with a resilience behavior.
type Strategy[R any] interface {
	// Execute runs the task for the request, applying the behavior around it.
	Execute(ctx context.Context, req *Request, task Task[R]) (R, error)
}
