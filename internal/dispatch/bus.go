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
	"sort"
	"sync"
	"sync/atomic"
)

// Priority orders subscribers of the same event. Lower runs first.
type Priority int

const (
	// PriorityInternal is for the engine's own reconciliation handlers.
	PriorityInternal Priority = 0
	// PriorityListener is for external listeners.
	PriorityListener Priority = 100
)

// Handler receives an event on the executor goroutine.
type Handler func(ctx context.Context, event any)

type subscription struct {
	id       uint64
	priority Priority
	handler  Handler
	active   atomic.Bool
}

// Bus is a priority-ordered event bus bound to an executor.
type Bus struct {
	exec *Executor

	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
}

// NewBus creates a bus that delivers events on exec.
func NewBus(exec *Executor) *Bus {
	return &Bus{exec: exec}
}

// Subscribe registers a handler for every event. Handlers with the same
// priority run in registration order. The returned function removes the
// subscription; a removed handler is not called again, even for an event
// whose delivery is in progress.
func (b *Bus) Subscribe(priority Priority, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, priority: priority, handler: handler}
	sub.active.Store(true)
	b.subs = append(b.subs, sub)
	sort.SliceStable(b.subs, func(i, j int) bool {
		return b.subs[i].priority < b.subs[j].priority
	})
	b.mu.Unlock()

	return func() {
		sub.active.Store(false)
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribe registers a handler for events of type E only.
func Subscribe[E any](b *Bus, priority Priority, handler func(ctx context.Context, event E)) (unsubscribe func()) {
	return b.Subscribe(priority, func(ctx context.Context, event any) {
		if typed, ok := event.(E); ok {
			handler(ctx, typed)
		}
	})
}

// Post queues event for delivery in a later turn. It may be called from any
// goroutine and reports false if the executor is closed.
func (b *Bus) Post(event any) bool {
	return b.exec.Submit(func(ctx context.Context) {
		b.deliver(ctx, event)
	})
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) deliver(ctx context.Context, event any) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		sub.handler(ctx, event)
	}
}
