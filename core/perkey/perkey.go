// Package perkey provides a scheduler that serializes work per key while
// letting work for different keys run concurrently.
//
// The runtime keys it by actor id: every dispatch for one actor runs on that
// actor's worker, in submission order, and never overlaps with another
// dispatch for the same actor.
package perkey

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

var ErrSchedulerClosed = errors.New("perkey: scheduler is closed")

// PanicError is returned by Do when the task panicked. The worker for the
// key keeps running.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("perkey: task panicked: %v", e.Value) }

type Option func(*config)

type config struct {
	bufferSize int
}

// WithBufferSize sets the task buffer size per worker (default: 64).
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// Scheduler runs tasks such that tasks for one key execute sequentially in
// submission order.
type Scheduler[K comparable] struct {
	mu         sync.Mutex
	workers    map[K]chan *task
	closed     bool
	inflight   sync.WaitGroup
	bufferSize int
}

type task struct {
	fn   func() error
	done chan error
}

func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := &config{bufferSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Scheduler[K]{
		workers:    make(map[K]chan *task),
		bufferSize: cfg.bufferSize,
	}
}

// Do runs fn on the worker for key and returns its error.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is done. A task that was
// already enqueued still runs; only the caller stops waiting for it.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.inflight.Add(1)
	tasks := s.workerLocked(key)
	s.mu.Unlock()
	defer s.inflight.Done()

	t := &task{fn: fn, done: make(chan error, 1)}
	select {
	case tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks. Tasks already queued still run.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// no sends to worker channels after this point
	s.inflight.Wait()

	s.mu.Lock()
	for _, tasks := range s.workers {
		close(tasks)
	}
	s.workers = nil
	s.mu.Unlock()
}

func (s *Scheduler[K]) workerLocked(key K) chan *task {
	if tasks, ok := s.workers[key]; ok {
		return tasks
	}
	tasks := make(chan *task, s.bufferSize)
	s.workers[key] = tasks
	go runWorker(tasks)
	return tasks
}

func runWorker(tasks <-chan *task) {
	for t := range tasks {
		t.done <- runTask(t.fn)
	}
}

func runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
