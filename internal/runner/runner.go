// Package runner runs tasks one at a time in submission order.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Task is a unit of work. It should return promptly once ctx is done.
type Task func(ctx context.Context) error

// PanicError is returned for a task that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

var _ error = (*PanicError)(nil)

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// Runner is a mutual exclusion queue. A task starts only after the one
// submitted before it has returned, whatever the outcome.
type Runner struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending []job
	running bool
	idle    *sync.Cond
}

func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{logger: logger}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Submit queues task and returns a channel that receives its result. A task
// whose ctx is done before its turn is skipped with the context error.
func (r *Runner) Submit(ctx context.Context, task Task) <-chan error {
	done := make(chan error, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, job{ctx: ctx, task: task, done: done})
	if !r.running {
		r.running = true
		go r.drain()
	}
	return done
}

// Run submits task and waits for it to finish.
func (r *Runner) Run(ctx context.Context, task Task) error {
	return <-r.Submit(ctx, task)
}

// Len reports how many tasks are queued or running.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.pending)
	if r.running {
		n++
	}
	return n
}

// Wait blocks until the queue is empty and no task is running.
func (r *Runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.running {
		r.idle.Wait()
	}
}

func (r *Runner) drain() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.running = false
			r.idle.Broadcast()
			r.mu.Unlock()
			return
		}
		next := r.pending[0]
		r.pending[0] = job{}
		r.pending = r.pending[1:]
		r.mu.Unlock()

		next.done <- r.execute(next)
	}
}

func (r *Runner) execute(j job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
			r.logger.Error("playback task panicked", "panic", v)
		}
	}()
	return j.task(j.ctx)
}
