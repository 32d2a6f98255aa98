package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrShuttingDown is returned by Launch once Shutdown has been called.
var ErrShuttingDown = errors.New("job registry is shutting down")

// ErrAlreadyRunning is returned by Launch for a job id that is still live.
var ErrAlreadyRunning = errors.New("job already running")

// Registry tracks every job launched by this process, keyed by job id. It
// bounds how many run at once and lets callers cancel or await a job.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*task
	closed bool

	slots  chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates a registry running at most concurrency jobs at once.
func NewRegistry(concurrency int, logger *slog.Logger) *Registry {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:  make(map[string]*task),
		slots:  make(chan struct{}, concurrency),
		logger: logger,
	}
}

// Launch runs fn in its own goroutine once a slot frees up. fn receives a
// context canceled by Cancel or Shutdown. If the job is canceled before it
// gets a slot, fn still runs, with an already-canceled context, so it can
// record the outcome.
func (r *Registry) Launch(jobID string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrShuttingDown
	}
	if _, ok := r.tasks[jobID]; ok {
		return fmt.Errorf("%s: %w", jobID, ErrAlreadyRunning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	r.tasks[jobID] = t
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.tasks, jobID)
			r.mu.Unlock()
			cancel()
			close(t.done)
		}()

		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-ctx.Done():
		}

		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("job panicked", "jobID", jobID, "panic", p)
			}
		}()
		fn(ctx)
	}()
	return nil
}

// Live reports whether jobID is running or waiting in this process.
func (r *Registry) Live(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[jobID]
	return ok
}

// Cancel signals a live job to stop. It reports whether the job was live.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	t, ok := r.tasks[jobID]
	r.mu.Unlock()
	if ok {
		r.logger.Info("canceling job", "jobID", jobID)
		t.cancel()
	}
	return ok
}

// Wait blocks until jobID has finished or ctx is done. A job that is not
// live returns immediately.
func (r *Registry) Wait(ctx context.Context, jobID string) error {
	r.mu.Lock()
	t, ok := r.tasks[jobID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new jobs, cancels every live job and waits for all of
// them to return or for ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	n := len(r.tasks)
	for _, t := range r.tasks {
		t.cancel()
	}
	r.mu.Unlock()

	r.logger.Info("job registry shutting down, waiting for jobs to finish", "jobs", n)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("job registry stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}
