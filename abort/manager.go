// Package abort tracks cancellable in-flight requests by id.
package abort

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/karupanerura/taskguard"
	"github.com/oklog/ulid/v2"
)

// NewRequestID returns a new lexicographically sortable request id.
func NewRequestID() string {
	return ulid.Make().String()
}

type registration struct {
	cancel context.CancelCauseFunc
}

// Manager associates a cancellable context with each pending request id.
// Cancelling a request cancels its context with a *taskguard.CanceledError cause.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*registration
	closed  bool
}

// NewManager creates a manager logging to logger, or slog.Default() if nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, pending: map[string]*registration{}}
}

// Register derives a cancellable context for id from ctx. The returned release function
// forgets the registration and must be called once the request settles.
// A later registration of the same id replaces the earlier one for Cancel.
// After Disconnect the returned context is already cancelled.
func (m *Manager) Register(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	r := &registration{cancel: cancel}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel(&taskguard.CanceledError{RequestID: id})
		return ctx, func() {}
	}
	m.pending[id] = r
	m.mu.Unlock()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			m.mu.Lock()
			if m.pending[id] == r {
				delete(m.pending, id)
			}
			m.mu.Unlock()
			cancel(nil)
		})
	}
}

// Cancel cancels the pending request id and forgets it. It reports whether id was pending.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	r, ok := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.logger.Debug("cancelling request", "requestId", id)
	r.cancel(&taskguard.CanceledError{RequestID: id})
	return true
}

// Pending returns the ids of the pending requests, sorted.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Disconnect cancels every pending request. Later registrations are cancelled immediately.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	pending := m.pending
	m.pending = map[string]*registration{}
	m.closed = true
	m.mu.Unlock()

	for id, r := range pending {
		r.cancel(&taskguard.CanceledError{RequestID: id})
	}
}
