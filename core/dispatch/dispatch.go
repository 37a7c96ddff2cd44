// Package dispatch runs secondary, fire-and-forget tasks detached from
// the request that spawned them. A task keeps running after its request
// completes; shutdown waits a bounded grace period for in-flight tasks
// before giving up.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbleresolve/leadgate/core/logger"
)

// DefaultShutdownTimeout bounds how long Close waits for in-flight tasks.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultTaskTimeout bounds a single task's execution.
const DefaultTaskTimeout = 30 * time.Second

// Dispatcher runs detached background tasks.
type Dispatcher struct {
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu orders the stopping check against wg.Add, so no task can slip
	// in after Close has started waiting.
	mu       sync.Mutex
	stopping bool

	shutdownTimeout time.Duration
	taskTimeout     time.Duration

	active atomic.Int32
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for task failures.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight tasks.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.shutdownTimeout = timeout
		}
	}
}

// WithTaskTimeout bounds each task's execution time.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.taskTimeout = timeout
		}
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdownTimeout: DefaultShutdownTimeout,
		taskTimeout:     DefaultTaskTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Go runs fn in the background with a fresh context detached from the
// caller's, so cancellation of the originating request does not abort
// the task. It reports false when the dispatcher is shutting down.
// Panics inside fn are recovered and logged.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) bool {
	d.mu.Lock()
	if d.stopping {
		d.mu.Unlock()
		d.logger.Debug("task rejected during shutdown", slog.String("task", name))
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.active.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked",
					slog.String("task", name), slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
		defer cancel()

		started := time.Now()
		if err := fn(ctx); err != nil {
			d.logger.Error("background task failed",
				slog.String("task", name), logger.Error(err), logger.Elapsed(started))
			return
		}
		d.logger.Debug("background task completed",
			slog.String("task", name), logger.Elapsed(started))
	}()

	return true
}

// Active reports the number of tasks currently running.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Close stops accepting new tasks and waits up to the shutdown timeout
// for in-flight tasks to finish. It returns context.DeadlineExceeded
// when tasks are still running at the deadline.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(d.shutdownTimeout):
		d.logger.Warn("shutdown grace period expired with tasks still running",
			slog.Int("active", d.Active()))
		return context.DeadlineExceeded
	}
}
