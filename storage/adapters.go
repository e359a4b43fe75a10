package storage

import (
	"context"
	"errors"

	"github.com/karupanerura/taskguard"
)

var _ taskguard.Storage = (*SilentErrorStorage)(nil)

// SilentErrorStorage decorates a Storage so that backend failures are passed to OnError
// and reported to the caller as a miss or a successful no-op.
type SilentErrorStorage struct {
	// Storage is the underlying storage that this decorator wraps.
	Storage taskguard.Storage

	// OnError is called with every error returned by Storage.
	OnError func(error)
}

func (s *SilentErrorStorage) report(err error) {
	if err != nil && s.OnError != nil {
		s.OnError(err)
	}
}

// GetItem reports a failed read as a miss.
func (s *SilentErrorStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Storage.GetItem(ctx, key)
	if err != nil {
		s.report(err)
		return "", false, nil
	}
	return v, ok, nil
}

// SetItem always returns nil.
func (s *SilentErrorStorage) SetItem(ctx context.Context, key, value string) error {
	s.report(s.Storage.SetItem(ctx, key, value))
	return nil
}

// RemoveItem always returns nil.
func (s *SilentErrorStorage) RemoveItem(ctx context.Context, key string) error {
	s.report(s.Storage.RemoveItem(ctx, key))
	return nil
}

// Clear always returns nil.
func (s *SilentErrorStorage) Clear(ctx context.Context) error {
	s.report(s.Storage.Clear(ctx))
	return nil
}

// Key reports a failed lookup as out of range.
func (s *SilentErrorStorage) Key(ctx context.Context, index int) (string, bool, error) {
	k, ok, err := s.Storage.Key(ctx, index)
	if err != nil {
		s.report(err)
		return "", false, nil
	}
	return k, ok, nil
}

// Length reports a failed count as an empty storage.
func (s *SilentErrorStorage) Length(ctx context.Context) (int, error) {
	n, err := s.Storage.Length(ctx)
	if err != nil {
		s.report(err)
		return 0, nil
	}
	return n, nil
}

var _ taskguard.Storage = (*FunctionsStorage)(nil)

// FunctionsStorage is a taskguard.Storage whose operations are plain functions.
// A nil function makes the corresponding operation fail with errors.ErrUnsupported.
type FunctionsStorage struct {
	GetItemFunc    func(ctx context.Context, key string) (string, bool, error)
	SetItemFunc    func(ctx context.Context, key, value string) error
	RemoveItemFunc func(ctx context.Context, key string) error
	ClearFunc      func(ctx context.Context) error
	KeyFunc        func(ctx context.Context, index int) (string, bool, error)
	LengthFunc     func(ctx context.Context) (int, error)
}

func (s *FunctionsStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.GetItemFunc == nil {
		return "", false, errors.ErrUnsupported
	}
	return s.GetItemFunc(ctx, key)
}

func (s *FunctionsStorage) SetItem(ctx context.Context, key, value string) error {
	if s.SetItemFunc == nil {
		return errors.ErrUnsupported
	}
	return s.SetItemFunc(ctx, key, value)
}

func (s *FunctionsStorage) RemoveItem(ctx context.Context, key string) error {
	if s.RemoveItemFunc == nil {
		return errors.ErrUnsupported
	}
	return s.RemoveItemFunc(ctx, key)
}

func (s *FunctionsStorage) Clear(ctx context.Context) error {
	if s.ClearFunc == nil {
		return errors.ErrUnsupported
	}
	return s.ClearFunc(ctx)
}

func (s *FunctionsStorage) Key(ctx context.Context, index int) (string, bool, error) {
	if s.KeyFunc == nil {
		return "", false, errors.ErrUnsupported
	}
	return s.KeyFunc(ctx, index)
}

func (s *FunctionsStorage) Length(ctx context.Context) (int, error) {
	if s.LengthFunc == nil {
		return 0, errors.ErrUnsupported
	}
	return s.LengthFunc(ctx)
}

// FromSync adapts a synchronous storage. Every operation returns ctx.Err() if ctx is
// already done and otherwise never fails.
func FromSync(s taskguard.SyncStorage) taskguard.Storage {
	return &syncStorage{s: s}
}

type syncStorage struct {
	s taskguard.SyncStorage
}

var _ taskguard.Storage = (*syncStorage)(nil)

func (s *syncStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := s.s.GetItem(key)
	return v, ok, nil
}

func (s *syncStorage) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.s.SetItem(key, value)
	return nil
}

func (s *syncStorage) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.s.RemoveItem(key)
	return nil
}

func (s *syncStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.s.Clear()
	return nil
}

func (s *syncStorage) Key(ctx context.Context, index int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	k, ok := s.s.Key(index)
	return k, ok, nil
}

func (s *syncStorage) Length(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.s.Length(), nil
}

// Keys lists every key of s, using KeyLister when s implements it.
func Keys(ctx context.Context, s taskguard.Storage) ([]string, error) {
	if l, ok := s.(taskguard.KeyLister); ok {
		keys, err := l.AllKeys(ctx)
		if err != nil {
			return nil, errors.Join(ErrKeys, err)
		}
		return keys, nil
	}

	n, err := s.Length(ctx)
	if err != nil {
		return nil, errors.Join(ErrKeys, err)
	}
	keys := make([]string, 0, n)
	for i := range n {
		k, ok, err := s.Key(ctx, i)
		if err != nil {
			return nil, errors.Join(ErrKeys, err)
		}
		if !ok {
			// Shrunk while iterating.
			break
		}
		keys = append(keys, k)
	}
	return keys, nil
}
