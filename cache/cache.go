// Package cache implements a single TTL-aware cache tier over a taskguard.Storage.
//
// Entries carry a freshness window, after which reads flag them as stale, and a
// retention window, after which they are defunct and removed. Mutations of one key are
// serialized by a LockManager, and a Scheduler sweeps defunct entries periodically.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/expiration"
	"github.com/karupanerura/taskguard/metrics"
	"github.com/karupanerura/taskguard/storage"
)

// ErrDisconnected is returned when subscribing to a disconnected cache.
var ErrDisconnected = errors.New("cache: disconnected")

// Cache is one storage tier holding taskguard.CacheEntry values.
type Cache[V any] struct {
	name      string
	storage   taskguard.Storage
	codec     taskguard.Codec[V]
	freshness time.Duration
	retention time.Duration
	clock     taskguard.Clock
	policy    expiration.Policy
	logger    *slog.Logger
	metrics   *metrics.Collector

	locks     *LockManager
	emitter   *Emitter
	scheduler *Scheduler

	disconnected atomic.Bool
}

// New creates a cache tier over s. One garbage collection sweep runs before New returns,
// and further sweeps run every GC interval until Disconnect.
func New[V any](s taskguard.Storage, opts ...Option[V]) *Cache[V] {
	o := defaultOptions[V]()
	for _, opt := range opts {
		opt.apply(&o)
	}

	c := &Cache[V]{
		name:      o.name,
		storage:   s,
		codec:     o.codec,
		freshness: o.freshness,
		retention: o.retention,
		clock:     o.clock,
		policy:    o.policy,
		logger:    o.logger,
		metrics:   o.metrics,
		locks:     NewLockManager(),
		emitter:   NewEmitter(o.name, o.logger),
	}
	c.scheduler = NewScheduler(o.gcInterval, c.CollectGarbage, WithSchedulerLogger(o.logger))

	if err := c.CollectGarbage(context.Background()); err != nil {
		c.logger.Warn("initial garbage collection failed", "tier", c.name, "error", err)
	}
	c.scheduler.Start()
	return c
}

// Name returns the tier name.
func (c *Cache[V]) Name() string {
	return c.name
}

func (c *Cache[V]) read(ctx context.Context, key string) (*taskguard.CacheEntry[V], error) {
	raw, ok, err := c.storage.GetItem(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %q from %s: %w", key, c.name, err)
	}
	if !ok {
		return nil, nil
	}
	entry, err := c.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("read %q from %s: %w", key, c.name, err)
	}
	return entry, nil
}

func (c *Cache[V]) write(ctx context.Context, entry *taskguard.CacheEntry[V]) error {
	raw, err := c.codec.Encode(entry)
	if err != nil {
		return err
	}
	if err := c.storage.SetItem(ctx, entry.Key, raw); err != nil {
		return fmt.Errorf("write %q to %s: %w", entry.Key, c.name, err)
	}
	return nil
}

func (c *Cache[V]) remove(ctx context.Context, key string) error {
	if err := c.storage.RemoveItem(ctx, key); err != nil {
		return fmt.Errorf("remove %q from %s: %w", key, c.name, err)
	}
	return nil
}

// withLock runs f while holding the lock of key.
func (c *Cache[V]) withLock(ctx context.Context, key string, f func() error) error {
	if err := c.locks.Lock(ctx, key); err != nil {
		return err
	}
	defer c.locks.Unlock(key)

	return f()
}

// GetEntry returns the entry stored under key, or nil if there is none.
// A defunct entry is deleted (emitting EventExpired) and reported as absent.
func (c *Cache[V]) GetEntry(ctx context.Context, key string) (*taskguard.CacheEntry[V], error) {
	entry, err := c.read(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		c.metrics.RecordCacheRead(c.name, metrics.ReadMiss)
		return nil, nil
	}
	if entry.ShouldDelete(c.clock.Now()) {
		c.metrics.RecordCacheRead(c.name, metrics.ReadMiss)
		if err := c.expire(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return entry, nil
}

// expire deletes key if its entry is still defunct once the lock is held.
func (c *Cache[V]) expire(ctx context.Context, key string) error {
	return c.withLock(ctx, key, func() error {
		entry, err := c.read(ctx, key)
		if err != nil {
			return err
		}
		if entry == nil || !entry.ShouldDelete(c.clock.Now()) {
			return nil
		}
		if err := c.remove(ctx, key); err != nil {
			return err
		}
		c.Emit(taskguard.EventExpired, key)
		return nil
	})
}

// Get returns the value under key with its staleness, or nil if absent or defunct.
func (c *Cache[V]) Get(ctx context.Context, key string) (*taskguard.Result[V], error) {
	entry, err := c.GetEntry(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}

	stale := c.IsStale(entry)
	if stale {
		c.metrics.RecordCacheRead(c.name, metrics.ReadStale)
	} else {
		c.metrics.RecordCacheRead(c.name, metrics.ReadHit)
	}
	return &taskguard.Result[V]{Value: entry.Value, IsStale: stale}, nil
}

// IsStale reports whether entry is stale now under the tier's policy.
func (c *Cache[V]) IsStale(entry *taskguard.CacheEntry[V]) bool {
	return c.policy.IsStale(c.clock.Now(), entry.FreshExpiresAt)
}

// NewEntry creates an entry timed from now using the tier defaults unless overridden.
func (c *Cache[V]) NewEntry(key string, value V, opts ...SetOption) *taskguard.CacheEntry[V] {
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}
	freshness, retention := c.freshness, c.retention
	if so.freshness != nil {
		freshness = *so.freshness
	}
	if so.retention != nil {
		retention = *so.retention
	}
	return taskguard.NewCacheEntry(key, value, freshness, retention, c.clock.Now())
}

// Set stores value under key as a new entry.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, opts ...SetOption) error {
	return c.SetEntry(ctx, c.NewEntry(key, value, opts...))
}

// SetEntry stores entry as is, keeping its timing.
func (c *Cache[V]) SetEntry(ctx context.Context, entry *taskguard.CacheEntry[V]) error {
	return c.withLock(ctx, entry.Key, func() error {
		return c.write(ctx, entry)
	})
}

// Update atomically replaces the value under key with fn(current, found).
// A defunct entry counts as not found. If fn fails nothing is written and its error is returned.
func (c *Cache[V]) Update(ctx context.Context, key string, fn func(current V, found bool) (V, error), opts ...SetOption) (V, error) {
	var updated V
	err := c.withLock(ctx, key, func() error {
		entry, err := c.read(ctx, key)
		if err != nil {
			return err
		}

		var (
			current V
			found   bool
		)
		if entry != nil && !entry.ShouldDelete(c.clock.Now()) {
			current, found = entry.Value, true
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}
		if err := c.write(ctx, c.NewEntry(key, next, opts...)); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// Delete removes key and emits EventRemoved.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	return c.withLock(ctx, key, func() error {
		if err := c.remove(ctx, key); err != nil {
			return err
		}
		c.Emit(taskguard.EventRemoved, key)
		return nil
	})
}

// Invalidate removes key and emits EventInvalidated.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) error {
	return c.withLock(ctx, key, func() error {
		if err := c.remove(ctx, key); err != nil {
			return err
		}
		c.Emit(taskguard.EventInvalidated, key)
		return nil
	})
}

// Clear removes every entry and emits EventCleared.
func (c *Cache[V]) Clear(ctx context.Context) error {
	if err := c.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", c.name, err)
	}
	c.Emit(taskguard.EventCleared, "")
	return nil
}

// Keys lists every stored key, including stale and defunct ones.
func (c *Cache[V]) Keys(ctx context.Context) ([]string, error) {
	return storage.Keys(ctx, c.storage)
}

// StaleKeys lists the keys whose entries are stale but not yet defunct.
func (c *Cache[V]) StaleKeys(ctx context.Context) ([]string, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, key := range keys {
		entry, err := c.read(ctx, key)
		if err != nil {
			c.logger.Warn("skipping unreadable entry", "tier", c.name, "key", key, "error", err)
			continue
		}
		if entry != nil && c.IsStale(entry) && !entry.ShouldDelete(c.clock.Now()) {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

// CollectGarbage deletes every defunct entry and then emits EventClearedExpired.
// Entries that cannot be read are logged and left alone.
func (c *Cache[V]) CollectGarbage(ctx context.Context) error {
	keys, err := c.Keys(ctx)
	if err != nil {
		return fmt.Errorf("collect garbage of %s: %w", c.name, err)
	}

	var errs []error
	for _, key := range keys {
		err := c.withLock(ctx, key, func() error {
			entry, err := c.read(ctx, key)
			if err != nil {
				c.logger.Warn("skipping unreadable entry", "tier", c.name, "key", key, "error", err)
				return nil
			}
			if entry == nil || !entry.ShouldDelete(c.clock.Now()) {
				return nil
			}
			return c.remove(ctx, key)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	c.Emit(taskguard.EventClearedExpired, "")
	return errors.Join(errs...)
}

// On registers a listener for events of type t. It fails with ErrDisconnected after Disconnect.
func (c *Cache[V]) On(t taskguard.EventType, l taskguard.Listener) (unsubscribe func(), err error) {
	return c.emitter.On(t, l)
}

// Emit delivers an event for key to this tier's listeners.
func (c *Cache[V]) Emit(t taskguard.EventType, key string) {
	c.metrics.RecordCacheEvent(c.name, string(t))
	c.emitter.Emit(t, key)
}

// Disconnect stops the garbage collector, drops every listener and releases lock waiters.
// Later mutations fail with ErrLockManagerClosed. Disconnect is idempotent.
func (c *Cache[V]) Disconnect() {
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}
	c.scheduler.Stop()
	c.emitter.Close()
	c.locks.Close()
}
