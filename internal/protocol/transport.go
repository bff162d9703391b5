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

package protocol

import (
	"github.com/tombee/runcontrol/internal/execctx"
)

// CompletionFunc receives the outcome of a queued command. Exactly one of
// result and err is meaningful.
type CompletionFunc func(result Result, err error)

// Transport sends commands to the debugger.
//
// Implementations must preserve the order of the commands they are given
// and must call done exactly once per command, from any goroutine. Timeouts
// are the transport's responsibility.
type Transport interface {
	QueueCommand(cmd Command, done CompletionFunc)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(cmd Command, done CompletionFunc)

// QueueCommand calls f(cmd, done).
func (f TransportFunc) QueueCommand(cmd Command, done CompletionFunc) {
	f(cmd, done)
}

// FrameProvider creates stack frame contexts. It belongs to the stack
// service, which may shut down before the run-control engine does.
type FrameProvider interface {
	CreateFrameContext(thread execctx.ThreadContext, level int) execctx.FrameContext
}

// FrameProviderFunc adapts a function to the FrameProvider interface.
type FrameProviderFunc func(thread execctx.ThreadContext, level int) execctx.FrameContext

// CreateFrameContext calls f(thread, level).
func (f FrameProviderFunc) CreateFrameContext(thread execctx.ThreadContext, level int) execctx.FrameContext {
	return f(thread, level)
}

// EventSink accepts decoded protocol events from a transport. Post reports
// false once the receiving session has been closed.
type EventSink interface {
	Post(event any) bool
}
