// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/tombee/runcontrol/internal/log"
)

// ErrClosed is returned when work is submitted to a closed executor.
var ErrClosed = errors.New("dispatch: executor closed")

// Task is a unit of work run on the executor goroutine. ctx is marked as
// belonging to the executor; see OnExecutor.
type Task func(ctx context.Context)

type executorKey struct{}

// Executor is a single-consumer FIFO task queue.
type Executor struct {
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool
	turns  uint64

	base context.Context
	done chan struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor and starts its goroutine. Call Close to
// stop it.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: log.Discard(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cond = sync.NewCond(&e.mu)
	e.base = context.WithValue(context.Background(), executorKey{}, e)

	go e.loop()
	return e
}

// Submit queues a task. It never blocks and may be called from any
// goroutine, including from inside a task. It returns false if the executor
// is closed.
func (e *Executor) Submit(task Task) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
	return true
}

// OnExecutor reports whether ctx was handed out by this executor to a
// running task.
func (e *Executor) OnExecutor(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(executorKey{}).(*Executor)
	return owner == e
}

// Call runs fn on the executor and waits for it to return. When ctx already
// belongs to a task of this executor, fn runs inline. If ctx is cancelled
// first, Call returns ctx.Err() and fn still runs later. If the executor is
// closed before fn starts, fn never runs and Call returns ErrClosed.
func (e *Executor) Call(ctx context.Context, fn Task) error {
	if e.OnExecutor(ctx) {
		fn(ctx)
		return nil
	}

	finished := make(chan struct{})
	if !e.Submit(func(taskCtx context.Context) {
		defer close(finished)
		fn(taskCtx)
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Drain waits until the queue is empty and no task is running. Tasks that
// re-submit themselves, such as delayed completions, are waited for too.
func (e *Executor) Drain(ctx context.Context) error {
	for {
		idle := make(chan bool, 1)
		if !e.Submit(func(context.Context) {
			e.mu.Lock()
			idle <- len(e.queue) == 0
			e.mu.Unlock()
		}) {
			return ErrClosed
		}

		select {
		case ok := <-idle:
			if ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return ErrClosed
		}
	}
}

// Turns returns the number of tasks run so far.
func (e *Executor) Turns() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns
}

// Close stops the executor. A running task finishes; queued tasks that have
// not started are dropped. Receive from Done to wait for the goroutine.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.queue = nil
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Done is closed once the executor goroutine has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.turns++
		e.mu.Unlock()

		e.run(task)
	}
}

func (e *Executor) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("dispatch task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	task(e.base)
}
