package cache

import (
	"log/slog"
	"sync"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/internal/panicutil"
)

// Emitter delivers events to listeners registered per event type.
// Listeners run synchronously on the emitting goroutine; a panicking listener is logged
// and does not prevent delivery to the others.
type Emitter struct {
	tier   string
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[taskguard.EventType]map[uint64]taskguard.Listener
	nextID    uint64
	closed    bool
}

// NewEmitter creates an emitter stamping events with tier.
func NewEmitter(tier string, logger *slog.Logger) *Emitter {
	return &Emitter{
		tier:      tier,
		logger:    logger,
		listeners: map[taskguard.EventType]map[uint64]taskguard.Listener{},
	}
}

// On registers l for events of type t and returns a function removing it.
func (e *Emitter) On(t taskguard.EventType, l taskguard.Listener) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrDisconnected
	}
	id := e.nextID
	e.nextID++
	if e.listeners[t] == nil {
		e.listeners[t] = map[uint64]taskguard.Listener{}
	}
	e.listeners[t][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners[t], id)
		})
	}, nil
}

// Emit delivers an event to the listeners of t.
func (e *Emitter) Emit(t taskguard.EventType, key string) {
	e.mu.RLock()
	ls := make([]taskguard.Listener, 0, len(e.listeners[t]))
	for _, l := range e.listeners[t] {
		ls = append(ls, l)
	}
	e.mu.RUnlock()

	ev := taskguard.Event{Type: t, Key: key, Tier: e.tier}
	for _, l := range ls {
		if err := panicutil.Run(func() error { l(ev); return nil }); err != nil {
			e.logger.Warn("event listener panicked", "tier", e.tier, "event", string(t), "key", key, "error", err)
		}
	}
}

// Close drops every listener and rejects later registrations.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	clear(e.listeners)
}
