package strategy

import (
	"context"
	"errors"

	"github.com/karupanerura/taskguard"
)

// DefaultHandler runs handler for requests that fail with taskguard.ErrNoHandler.
// Any other failure propagates unchanged, as does ErrNoHandler when handler is nil.
type DefaultHandler[R any] struct {
	handler taskguard.Task[R]
	opts    options
}

var _ taskguard.Strategy[struct{}] = (*DefaultHandler[struct{}])(nil)

// NewDefaultHandler creates a default-handler strategy.
func NewDefaultHandler[R any](handler taskguard.Task[R], opts ...Option) *DefaultHandler[R] {
	return &DefaultHandler[R]{handler: handler, opts: newOptions(opts)}
}

// Execute runs task, routing unhandled requests to the default handler.
func (d *DefaultHandler[R]) Execute(ctx context.Context, req *taskguard.Request, task taskguard.Task[R]) (R, error) {
	v, err := task(ctx, req)
	if err == nil || d.handler == nil || !errors.Is(err, taskguard.ErrNoHandler) {
		return v, err
	}

	d.opts.metrics.RecordStrategy("default_handler", "handled")
	return d.handler(ctx, req)
}
