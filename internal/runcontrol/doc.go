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

// Package runcontrol tracks whether a debug target is running, stepping,
// suspended or gone, and issues the commands that move it between those
// states.
//
// A Service owns one debug session. It reconciles two unordered streams,
// command completions from the transport and asynchronous events from the
// debugger, into a single RunState. Every state change happens on the
// session's dispatch executor. Public methods may be called from any
// goroutine; they queue work onto the executor and wait for the outcome.
//
// # Events
//
// The service subscribes to raw protocol events on its bus, translates
// each into a domain Event, reconciles its own state, and only then hands
// the Event to listeners registered with Subscribe:
//
//	svc := runcontrol.New(transport, runcontrol.WithLogger(logger))
//	defer svc.Close()
//	target.Attach(svc.Sink())
//
//	svc.Subscribe(func(ctx context.Context, ev runcontrol.Event) {
//		if ev.Kind == runcontrol.EventSuspended {
//			data, _ := svc.GetExecutionData(ctx, ev.Context)
//			fmt.Println("stopped:", data.Reason)
//		}
//	})
//
// Listeners run on the executor. Query methods called from a listener run
// inline. Control methods called from a listener return once the command
// is issued; a later rejection still rolls the state back.
//
// # Ordering
//
// Completions are delayed by a configurable number of dispatch turns (see
// WithCompletionDelay) so that an event the debugger raised before
// answering a command is always reconciled before the answer is applied.
package runcontrol
