package resilience

import (
	"context"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/abort"
	"github.com/karupanerura/taskguard/interceptor"
	"github.com/karupanerura/taskguard/internal/panicutil"
	"github.com/karupanerura/taskguard/metrics"
)

// Handlers routes requests to tasks by name.
type Handlers[R any] map[string]taskguard.Task[R]

// Task returns a task dispatching to the handler named by the request,
// failing with *taskguard.NoHandlerError when there is none.
func (h Handlers[R]) Task() taskguard.Task[R] {
	return func(ctx context.Context, req *taskguard.Request) (R, error) {
		handler, ok := h[req.Name]
		if !ok {
			var zero R
			return zero, &taskguard.NoHandlerError{Name: req.Name}
		}
		return handler(ctx, req)
	}
}

// Executor runs requests through the query or command pipeline by kind, with cancellation
// by request id.
type Executor[R any] struct {
	queries  *Pipeline[R]
	commands *Pipeline[R]
	terminal taskguard.Task[R]
	aborts   *abort.Manager
	metrics  *metrics.Collector
}

// NewExecutor creates an executor whose pipelines are installed by b and end in terminal.
func NewExecutor[R any](b *Builder[R], terminal taskguard.Task[R]) *Executor[R] {
	e := &Executor[R]{
		queries:  interceptor.NewManager[*taskguard.Request, R](),
		commands: interceptor.NewManager[*taskguard.Request, R](),
		terminal: terminal,
		aborts:   abort.NewManager(b.logger),
		metrics:  b.metrics,
	}
	b.Query(e.queries)
	b.Command(e.commands)
	return e
}

// Queries returns the query pipeline, for registering additional interceptors.
func (e *Executor[R]) Queries() *Pipeline[R] {
	return e.queries
}

// Commands returns the command pipeline, for registering additional interceptors.
func (e *Executor[R]) Commands() *Pipeline[R] {
	return e.commands
}

// Execute runs req and returns its result. An empty req.ID is set to a new request id
// before the request starts. If the request is cancelled through Cancel or ctx, Execute
// returns the cancellation at once even if the task ignores its context.
func (e *Executor[R]) Execute(ctx context.Context, req *taskguard.Request) (R, error) {
	if req.ID == "" {
		req.ID = abort.NewRequestID()
	}
	ctx, release := e.aborts.Register(ctx, req.ID)
	defer release()

	pipeline := e.queries
	if req.Kind == taskguard.KindCommand {
		pipeline = e.commands
	}

	e.metrics.RecordExecutionStart(req.Name)
	start := time.Now()

	done := make(chan outcome[R], 1)
	go func() {
		g := panicutil.Guard{
			OnGoexit: func() {
				done <- outcome[R]{err: panicutil.ErrGoexit}
			},
		}
		var res outcome[R]
		res.err = g.Invoke(func() (err error) {
			res.value, err = pipeline.Execute(ctx, req, interceptor.Next[*taskguard.Request, R](e.terminal))
			return err
		})
		done <- res
	}()

	var res outcome[R]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = context.Cause(ctx)
	}
	e.metrics.RecordExecutionEnd(req.Name, time.Since(start), res.err)
	return res.value, res.err
}

// Cancel cancels the pending request id. It reports whether the request was pending.
func (e *Executor[R]) Cancel(id string) bool {
	return e.aborts.Cancel(id)
}

// Pending returns the ids of the running requests.
func (e *Executor[R]) Pending() []string {
	return e.aborts.Pending()
}

// Disconnect cancels every pending request and removes the pipelines' interceptors.
func (e *Executor[R]) Disconnect() {
	e.aborts.Disconnect()
	e.queries.Disconnect()
	e.commands.Disconnect()
}

type outcome[R any] struct {
	value R
	err   error
}
