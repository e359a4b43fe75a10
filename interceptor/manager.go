// Package interceptor provides an ordered onion middleware chain.
//
// The first registered interceptor is the outermost one and the terminal handler is the
// innermost. The chain is composed from a snapshot of the registrations on every Execute,
// so interceptors registered later take part in subsequent calls.
package interceptor

import (
	"context"
	"sync"
)

// Next continues the chain with the following interceptor or the terminal handler.
type Next[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Handler intercepts a call. It decides whether, when and how many times to call next.
type Handler[Req, Res any] interface {
	Intercept(ctx context.Context, req Req, next Next[Req, Res]) (Res, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req, next Next[Req, Res]) (Res, error)

// Intercept calls f.
func (f HandlerFunc[Req, Res]) Intercept(ctx context.Context, req Req, next Next[Req, Res]) (Res, error) {
	return f(ctx, req, next)
}

// Predicate selects the requests a tapped interceptor applies to.
type Predicate[Req any] func(req Req) bool

type registration[Req, Res any] struct {
	name      string
	predicate Predicate[Req]
	handler   Handler[Req, Res]
}

// Manager holds the registered interceptors. It is safe for concurrent use.
type Manager[Req, Res any] struct {
	mu            sync.RWMutex
	registrations []registration[Req, Res]
}

// NewManager creates an empty manager.
func NewManager[Req, Res any]() *Manager[Req, Res] {
	return &Manager[Req, Res]{}
}

// Use appends an interceptor applying to every request.
func (m *Manager[Req, Res]) Use(name string, h Handler[Req, Res]) {
	m.Tap(name, nil, h)
}

// UseFunc appends a function interceptor applying to every request.
func (m *Manager[Req, Res]) UseFunc(name string, f func(ctx context.Context, req Req, next Next[Req, Res]) (Res, error)) {
	m.Use(name, HandlerFunc[Req, Res](f))
}

// Tap appends an interceptor that is skipped for requests rejected by predicate.
// A nil predicate accepts every request.
func (m *Manager[Req, Res]) Tap(name string, predicate Predicate[Req], h Handler[Req, Res]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registrations = append(m.registrations, registration[Req, Res]{name: name, predicate: predicate, handler: h})
}

// Names returns the interceptor names in registration order.
func (m *Manager[Req, Res]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.registrations))
	for i, r := range m.registrations {
		names[i] = r.name
	}
	return names
}

// Execute runs req through the interceptors and then terminal.
func (m *Manager[Req, Res]) Execute(ctx context.Context, req Req, terminal Next[Req, Res]) (Res, error) {
	m.mu.RLock()
	chain := make([]registration[Req, Res], len(m.registrations))
	copy(chain, m.registrations)
	m.mu.RUnlock()

	var dispatch func(i int) Next[Req, Res]
	dispatch = func(i int) Next[Req, Res] {
		if i == len(chain) {
			return terminal
		}
		r := chain[i]
		return func(ctx context.Context, req Req) (Res, error) {
			next := dispatch(i + 1)
			if r.predicate != nil && !r.predicate(req) {
				return next(ctx, req)
			}
			return r.handler.Intercept(ctx, req, next)
		}
	}
	return dispatch(0)(ctx, req)
}

// Disconnect removes every interceptor.
func (m *Manager[Req, Res]) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registrations = nil
}
