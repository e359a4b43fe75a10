package cachestack

import (
	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/internal/panicutil"
)

// Emitter fans event delivery and subscription out to every tier.
type Emitter[V any] struct {
	s *Stack[V]
}

// Emit delivers an event for key through every tier.
func (e Emitter[V]) Emit(t taskguard.EventType, key string) {
	for _, tier := range e.s.tiers {
		tier.Emit(t, key)
	}
}

// On subscribes l to events of type t on every tier and returns one function
// unsubscribing from all of them. A tier that fails to subscribe is logged and skipped.
func (e Emitter[V]) On(t taskguard.EventType, l taskguard.Listener) (unsubscribe func()) {
	unsubscribes := make([]func(), 0, len(e.s.tiers))
	for _, tier := range e.s.tiers {
		var off func()
		err := panicutil.Run(func() (err error) {
			off, err = tier.On(t, l)
			return err
		})
		if err != nil {
			e.s.metrics.RecordTierError(tier.Name(), "subscribe")
			e.s.logger.Warn("tier subscription failed", "tier", tier.Name(), "event", string(t), "error", err)
			continue
		}
		unsubscribes = append(unsubscribes, off)
	}
	return func() {
		for _, off := range unsubscribes {
			off()
		}
	}
}

// Disconnect disconnects every tier.
func (e Emitter[V]) Disconnect() {
	for _, tier := range e.s.tiers {
		if err := panicutil.Run(func() error { tier.Disconnect(); return nil }); err != nil {
			e.s.logger.Warn("tier disconnect failed", "tier", tier.Name(), "error", err)
		}
	}
}
