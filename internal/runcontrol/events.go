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

package runcontrol

import (
	"fmt"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/protocol"
)

// EventKind identifies a domain event.
type EventKind string

const (
	EventResumed       EventKind = "resumed"
	EventSuspended     EventKind = "suspended"
	EventThreadStarted EventKind = "thread-started"
	EventThreadExited  EventKind = "thread-exited"
	EventTerminated    EventKind = "terminated"
)

// Event is published to listeners after the service has reconciled its
// own state with the protocol event that caused it.
type Event struct {
	Kind EventKind

	// Context is the container for container-wide changes, the thread for
	// threads without a container, and the new or exited thread for thread
	// events. It is nil for EventTerminated and for thread events that did
	// not carry an id.
	Context execctx.Context

	Reason Reason

	// Triggering is the thread that caused a container-wide change, when
	// the debugger named one.
	Triggering execctx.Context

	Detail string

	// Cause is the protocol event this event was derived from.
	Cause protocol.Event

	seq uint64
}

// ContainerScoped reports whether the event applies to a whole container.
func (e Event) ContainerScoped() bool {
	return execctx.IsContainer(e.Context)
}

func (e Event) String() string {
	ctx := "<none>"
	if e.Context != nil {
		ctx = e.Context.String()
	}
	if e.Triggering != nil {
		return fmt.Sprintf("%s(%s) %s by %s", e.Kind, e.Reason, ctx, e.Triggering)
	}
	return fmt.Sprintf("%s(%s) %s", e.Kind, e.Reason, ctx)
}

// translate derives the domain event for a protocol event. It reports
// false for events that name no usable context.
func translate(raw protocol.Event) (Event, bool) {
	ev := Event{Cause: raw, Detail: raw.Detail, Reason: ReasonUnknown}

	switch raw.Kind {
	case protocol.EventRunning, protocol.EventStopped:
		if raw.Kind == protocol.EventRunning {
			ev.Kind = EventResumed
			ev.Reason = ClassifyResume(raw.Run)
		} else {
			ev.Kind = EventSuspended
			ev.Reason = ClassifyStop(raw.Stop)
		}
		if container, ok := execctx.ContainerOf(raw.Context); ok {
			ev.Context = container
			if thread, ok := execctx.ThreadOf(raw.Context); ok {
				ev.Triggering = thread
			}
			return ev, true
		}
		if thread, ok := execctx.ThreadOf(raw.Context); ok {
			ev.Context = thread
			return ev, true
		}
		return ev, false

	case protocol.EventThreadCreated, protocol.EventThreadExited:
		ev.Kind = EventThreadStarted
		if raw.Kind == protocol.EventThreadExited {
			ev.Kind = EventThreadExited
		}
		if container, ok := execctx.ContainerOf(raw.Context); ok && raw.HasThreadID {
			ev.Context = execctx.NewThread(container, raw.ThreadID)
		}
		return ev, true

	case protocol.EventShutdown:
		ev.Kind = EventTerminated
		return ev, true

	default:
		return ev, false
	}
}
