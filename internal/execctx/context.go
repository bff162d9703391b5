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

// Package execctx models the execution contexts of a debug session.
//
// A ContainerContext stands for a whole process (GDB thread group). A
// ThreadContext is one thread of control inside a container, identified by
// the integer id the debugger protocol reports. A FrameContext addresses a
// stack frame of a thread and is only created by the frame collaborator.
//
// All context types are small comparable values. Two contexts are equal when
// their session, ancestor chain and ids are equal, so they can be used
// directly as map keys and compared with ==. Nothing in this package mutates
// a context after construction.
package execctx

import (
	"fmt"
)

// SentinelThreadID stands in for the main thread of a target that never
// reports thread ids, so every container has at least one thread context.
const SentinelThreadID = 0

// Context is an execution context. The concrete types are ContainerContext,
// ThreadContext and FrameContext.
type Context interface {
	// SessionID returns the id of the debug session the context belongs to.
	SessionID() string

	// Parent returns the owning context, or nil for a root context.
	Parent() Context

	// String returns a printable form such as "s1.group[i1].thread[3]".
	String() string

	isContext()
}

// ContainerContext represents an entire process or thread group.
type ContainerContext struct {
	Session string
	GroupID string
}

// NewContainer creates a container context.
func NewContainer(session, groupID string) ContainerContext {
	return ContainerContext{Session: session, GroupID: groupID}
}

func (c ContainerContext) SessionID() string { return c.Session }
func (c ContainerContext) Parent() Context   { return nil }
func (c ContainerContext) String() string {
	return fmt.Sprintf("%s.group[%s]", c.Session, c.GroupID)
}
func (ContainerContext) isContext() {}

// ThreadContext is a single thread of control inside a container.
type ThreadContext struct {
	Container ContainerContext
	ThreadID  int

	// orphan marks a thread with no container. The zero Container value is
	// otherwise indistinguishable from "no parent".
	orphan  bool
	session string
}

// NewThread creates a thread context owned by container.
func NewThread(container ContainerContext, threadID int) ThreadContext {
	return ThreadContext{Container: container, ThreadID: threadID}
}

// NewOrphanThread creates a thread context that has no container. Protocols
// without thread groups report threads this way.
func NewOrphanThread(session string, threadID int) ThreadContext {
	return ThreadContext{ThreadID: threadID, orphan: true, session: session}
}

func (t ThreadContext) SessionID() string {
	if t.orphan {
		return t.session
	}
	return t.Container.Session
}

func (t ThreadContext) Parent() Context {
	if t.orphan {
		return nil
	}
	return t.Container
}

func (t ThreadContext) String() string {
	if t.orphan {
		return fmt.Sprintf("%s.thread[%d]", t.session, t.ThreadID)
	}
	return fmt.Sprintf("%s.thread[%d]", t.Container, t.ThreadID)
}

func (ThreadContext) isContext() {}

// FrameContext addresses a stack frame; level 0 is the top frame.
type FrameContext struct {
	Thread ThreadContext
	Level  int
}

// NewFrame creates a frame context.
func NewFrame(thread ThreadContext, level int) FrameContext {
	return FrameContext{Thread: thread, Level: level}
}

func (f FrameContext) SessionID() string { return f.Thread.SessionID() }
func (f FrameContext) Parent() Context   { return f.Thread }
func (f FrameContext) String() string    { return fmt.Sprintf("%s.frame[%d]", f.Thread, f.Level) }
func (FrameContext) isContext()          {}

// Ancestor walks the ownership chain of c, starting with c itself, and
// returns the first context of type T.
func Ancestor[T Context](c Context) (T, bool) {
	for cur := c; cur != nil; cur = cur.Parent() {
		if match, ok := cur.(T); ok {
			return match, true
		}
	}
	var zero T
	return zero, false
}

// ContainerOf returns the container owning c, or c itself if it is one.
func ContainerOf(c Context) (ContainerContext, bool) {
	return Ancestor[ContainerContext](c)
}

// ThreadOf returns the nearest thread context of c, or c itself if it is one.
func ThreadOf(c Context) (ThreadContext, bool) {
	return Ancestor[ThreadContext](c)
}

// IsContainer reports whether c is a container context.
func IsContainer(c Context) bool {
	_, ok := c.(ContainerContext)
	return ok
}

// IsAncestorOf reports whether ancestor appears in the ownership chain of c,
// c itself included.
func IsAncestorOf(ancestor, c Context) bool {
	if ancestor == nil {
		return false
	}
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Threads creates thread contexts for the ids reported by the protocol, in
// order. An empty list yields the single sentinel thread.
func Threads(container ContainerContext, ids []int) []ThreadContext {
	if len(ids) == 0 {
		return []ThreadContext{NewThread(container, SentinelThreadID)}
	}
	threads := make([]ThreadContext, len(ids))
	for i, id := range ids {
		threads[i] = NewThread(container, id)
	}
	return threads
}
