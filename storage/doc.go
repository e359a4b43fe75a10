// Package storage provides adapters for taskguard.Storage backends.
//
// FromSync adapts a synchronous, infallible key/value store to the context-aware
// contract. SilentErrorStorage reports backend errors to a callback instead of failing
// the cache operation, and FunctionsStorage builds a backend from plain functions,
// which is mostly useful as a test fake.
//
// The package also defines the sentinel errors backends wrap: ErrGet, ErrSet,
// ErrRemove, ErrClear and ErrKeys.
package storage
