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
	"fmt"

	"github.com/tombee/runcontrol/internal/execctx"
)

// EventKind identifies an asynchronous protocol notification.
type EventKind string

const (
	// EventRunning is *running: the target resumed.
	EventRunning EventKind = "running"
	// EventStopped is *stopped: the target suspended.
	EventStopped EventKind = "stopped"
	// EventThreadCreated is =thread-created.
	EventThreadCreated EventKind = "thread-created"
	// EventThreadExited is =thread-exited.
	EventThreadExited EventKind = "thread-exited"
	// EventShutdown reports that the debugger connection is gone.
	EventShutdown EventKind = "shutdown"
)

// StopCause is the raw subtype of a stopped notification, taken from the
// MI "reason" field.
type StopCause string

const (
	StopUnspecified       StopCause = ""
	StopBreakpointHit     StopCause = "breakpoint-hit"
	StopEndSteppingRange  StopCause = "end-stepping-range"
	StopSharedLibrary     StopCause = "solib-event"
	StopSignalReceived    StopCause = "signal-received"
	StopWatchpointTrigger StopCause = "watchpoint-trigger"
	StopAccessWatchpoint  StopCause = "access-watchpoint-trigger"
	StopReadWatchpoint    StopCause = "read-watchpoint-trigger"
	StopError             StopCause = "error"
	StopFunctionFinished  StopCause = "function-finished"
	StopLocationReached   StopCause = "location-reached"
	StopExitedSignalled   StopCause = "exited-signalled"
	StopExitedNormally    StopCause = "exited-normally"
)

// RunType is the raw subtype of a running notification: the kind of
// command that resumed the target.
type RunType string

const (
	RunContinue        RunType = "continue"
	RunNext            RunType = "next"
	RunNextInstruction RunType = "nexti"
	RunStep            RunType = "step"
	RunStepInstruction RunType = "stepi"
	RunFinish          RunType = "finish"
	RunUntil           RunType = "until"
	RunReturn          RunType = "return"
)

// RunTypeFor returns the running subtype a command of the given kind causes.
func RunTypeFor(kind CommandKind) (RunType, bool) {
	switch kind {
	case CommandContinue:
		return RunContinue, true
	case CommandNext:
		return RunNext, true
	case CommandNextInstruction:
		return RunNextInstruction, true
	case CommandStep:
		return RunStep, true
	case CommandStepInstruction:
		return RunStepInstruction, true
	case CommandFinish:
		return RunFinish, true
	case CommandUntil:
		return RunUntil, true
	default:
		return "", false
	}
}

// Event is a decoded asynchronous notification. Which fields are meaningful
// depends on Kind.
type Event struct {
	Kind EventKind

	// Context is where the event happened. Running and stopped events carry
	// the thread or container that changed state; thread events carry the
	// owning container.
	Context execctx.Context

	// Stop is set for EventStopped.
	Stop StopCause

	// Run is set for EventRunning.
	Run RunType

	// ThreadID and HasThreadID are set for thread events. A thread event
	// without an id still reaches listeners, with no thread context.
	ThreadID    int
	HasThreadID bool

	// Detail carries free text such as a signal name or error message.
	Detail string
}

// Running creates a running event.
func Running(ctx execctx.Context, run RunType) Event {
	return Event{Kind: EventRunning, Context: ctx, Run: run}
}

// Stopped creates a stopped event.
func Stopped(ctx execctx.Context, cause StopCause) Event {
	return Event{Kind: EventStopped, Context: ctx, Stop: cause}
}

// ThreadCreated creates a thread-created event.
func ThreadCreated(container execctx.ContainerContext, threadID int) Event {
	return Event{Kind: EventThreadCreated, Context: container, ThreadID: threadID, HasThreadID: true}
}

// ThreadExited creates a thread-exited event.
func ThreadExited(container execctx.ContainerContext, threadID int) Event {
	return Event{Kind: EventThreadExited, Context: container, ThreadID: threadID, HasThreadID: true}
}

// Shutdown creates a connection-shutdown event.
func Shutdown(detail string) Event {
	return Event{Kind: EventShutdown, Detail: detail}
}

// String returns a short description for logs.
func (e Event) String() string {
	ctx := "<none>"
	if e.Context != nil {
		ctx = e.Context.String()
	}
	switch e.Kind {
	case EventRunning:
		return fmt.Sprintf("*running(%s) %s", e.Run, ctx)
	case EventStopped:
		return fmt.Sprintf("*stopped(%s) %s", e.Stop, ctx)
	case EventThreadCreated, EventThreadExited:
		if !e.HasThreadID {
			return fmt.Sprintf("=%s %s", e.Kind, ctx)
		}
		return fmt.Sprintf("=%s id=%d %s", e.Kind, e.ThreadID, ctx)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Detail)
	}
}
