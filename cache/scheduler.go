package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karupanerura/taskguard/internal/panicutil"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption interface {
	applyScheduler(*Scheduler)
}

type schedulerOptionFunc func(*Scheduler)

func (f schedulerOptionFunc) applyScheduler(s *Scheduler) {
	f(s)
}

// WithSchedulerLogger sets the logger used when no error handler is set.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return schedulerOptionFunc(func(s *Scheduler) {
		s.logger = logger
	})
}

// WithErrorHandler sets the callback receiving task errors and recovered panics.
func WithErrorHandler(f func(error)) SchedulerOption {
	return schedulerOptionFunc(func(s *Scheduler) {
		s.onError = f
	})
}

// Scheduler runs a task at a fixed interval in a background goroutine.
type Scheduler struct {
	interval time.Duration
	task     func(context.Context) error
	logger   *slog.Logger
	onError  func(error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewScheduler creates a stopped scheduler running task every interval.
func NewScheduler(interval time.Duration, task func(context.Context) error, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.applyScheduler(s)
	}
	return s
}

// Start launches the background goroutine. It is a no-op if the scheduler is running or stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || s.stopped || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.poll(ctx, s.done)
}

// Stop cancels the background goroutine and waits for a running tick to finish.
// A stopped scheduler cannot be restarted. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Scheduler) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := panicutil.Run(func() error { return s.task(ctx) }); err != nil {
				s.report(err)
			}
		}
	}
}

func (s *Scheduler) report(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logger.Warn("scheduled task failed", "error", err)
}
