package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrLockManagerClosed is returned to lock waiters once the manager is closed.
var ErrLockManagerClosed = errors.New("cache: lock manager closed")

// LockManager provides per-key mutual exclusion. Waiters for a key are served in FIFO order.
// The zero value is not usable; use NewLockManager.
type LockManager struct {
	mu     sync.Mutex
	locks  map[string]*keyLock
	closed bool
}

// keyLock exists while its key is held. Each waiter receives exactly one value:
// nil when the lock is handed to it, or ErrLockManagerClosed.
type keyLock struct {
	waiters []chan error
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: map[string]*keyLock{}}
}

// Lock acquires the lock for key, waiting behind the current holder and earlier waiters.
// If ctx is done first, the wait is abandoned and ctx.Err() is returned; a lock handed
// over concurrently is passed on to the next waiter.
func (m *LockManager) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrLockManagerClosed
	}
	l, held := m.locks[key]
	if !held {
		m.locks[key] = &keyLock{}
		m.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	l.waiters = append(l.waiters, ch)
	m.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
	}

	m.mu.Lock()
	if i := slices.Index(l.waiters, ch); i >= 0 {
		l.waiters = slices.Delete(l.waiters, i, i+1)
		m.mu.Unlock()
		return ctx.Err()
	}
	m.mu.Unlock()

	// Dequeued already, so a value is buffered in ch.
	if err := <-ch; err == nil {
		m.Unlock(key)
	}
	return ctx.Err()
}

// Unlock releases the lock for key and hands it to the next waiter, if any.
// Unlocking a key that is not held is a no-op.
func (m *LockManager) Unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		return
	}
	if len(l.waiters) == 0 {
		delete(m.locks, key)
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	next <- nil
}

// Held reports whether key is currently locked.
func (m *LockManager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.locks[key]
	return ok
}

// Waiters returns the number of callers queued behind the holder of key.
func (m *LockManager) Waiters(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok {
		return len(l.waiters)
	}
	return 0
}

// Close wakes every waiter with ErrLockManagerClosed and rejects later Lock calls.
// Close is idempotent.
func (m *LockManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for _, l := range m.locks {
		for _, ch := range l.waiters {
			ch <- ErrLockManagerClosed
		}
	}
	clear(m.locks)
}
