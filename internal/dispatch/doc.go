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

// Package dispatch provides the serialization point of a debug session.
//
// # Executor
//
// Executor runs tasks one at a time, in submission order, on a single
// goroutine. Each task is one dispatch turn. All run-control state and
// cache mutation happens inside tasks, so none of it needs locking. Tasks
// must not block; work that waits on the debugger is expressed as a
// callback that submits a new task when the debugger answers.
//
// # Bus
//
// Bus delivers events to subscribers in a later turn than the one in which
// they were posted. Subscribers registered with PriorityInternal run before
// those registered with PriorityListener, so the engine reconciles its own
// state before any external listener observes an event.
//
// # Completion buffering
//
// A debugger transport typically delivers command completions in fewer
// turns than the events that precede them: an event is posted, translated
// into a domain event, and only then reconciled, while a completion is
// handed straight to its callback. BufferedTransport re-queues every
// completion a configurable number of extra turns so that an event raised
// before a completion is always reconciled before that completion runs.
//
//	exec := dispatch.NewExecutor()
//	bus := dispatch.NewBus(exec)
//	transport := dispatch.NewBufferedTransport(raw, exec, dispatch.DefaultCompletionDelay, logger)
package dispatch
