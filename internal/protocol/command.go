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

// Package protocol defines the typed commands, results and asynchronous
// events exchanged with a GDB/MI style debugger, plus the collaborator
// interfaces the run-control engine consumes.
//
// Encoding and decoding of the textual wire format live outside this
// module. A Transport implementation receives Command values, sends them to
// the debugger, and reports each completion exactly once. Out-of-band
// notifications are decoded into Event values and posted to the session's
// event bus.
package protocol

import (
	"fmt"
	"strings"

	"github.com/tombee/runcontrol/internal/execctx"
)

// CommandKind identifies a debugger command.
type CommandKind string

const (
	CommandContinue        CommandKind = "continue"
	CommandInterrupt       CommandKind = "interrupt"
	CommandStep            CommandKind = "step"
	CommandNext            CommandKind = "next"
	CommandStepInstruction CommandKind = "step-instruction"
	CommandNextInstruction CommandKind = "next-instruction"
	CommandFinish          CommandKind = "finish"
	CommandUntil           CommandKind = "until"
	CommandThreadListIDs   CommandKind = "thread-list-ids"
)

// Operation returns the GDB/MI operation name for the kind.
func (k CommandKind) Operation() string {
	switch k {
	case CommandThreadListIDs:
		return "-thread-list-ids"
	default:
		return "-exec-" + string(k)
	}
}

// Command is a typed request addressed to an execution context.
type Command struct {
	Kind CommandKind

	// Context is the container, thread or frame the command targets.
	Context execctx.Context

	// Location is the linespec for until.
	Location string

	// Count is the repeat count for the stepping commands. Zero means once.
	Count int
}

// Continue creates a continue command.
func Continue(ctx execctx.Context) Command {
	return Command{Kind: CommandContinue, Context: ctx}
}

// Interrupt creates an interrupt command.
func Interrupt(ctx execctx.Context) Command {
	return Command{Kind: CommandInterrupt, Context: ctx}
}

// Step creates a source-level step-into command.
func Step(thread execctx.ThreadContext) Command {
	return Command{Kind: CommandStep, Context: thread, Count: 1}
}

// Next creates a source-level step-over command.
func Next(thread execctx.ThreadContext) Command {
	return Command{Kind: CommandNext, Context: thread, Count: 1}
}

// StepInstruction creates an instruction step-into command.
func StepInstruction(thread execctx.ThreadContext) Command {
	return Command{Kind: CommandStepInstruction, Context: thread, Count: 1}
}

// NextInstruction creates an instruction step-over command.
func NextInstruction(thread execctx.ThreadContext) Command {
	return Command{Kind: CommandNextInstruction, Context: thread, Count: 1}
}

// Finish creates a step-return command for the given frame.
func Finish(frame execctx.FrameContext) Command {
	return Command{Kind: CommandFinish, Context: frame}
}

// Until creates a run-to-location command.
func Until(thread execctx.ThreadContext, location string) Command {
	return Command{Kind: CommandUntil, Context: thread, Location: location}
}

// ThreadListIDs creates a thread enumeration command for a container.
func ThreadListIDs(container execctx.ContainerContext) Command {
	return Command{Kind: CommandThreadListIDs, Context: container}
}

// Key identifies the command for caching and request coalescing. Two
// commands with the same key always produce the same result while the
// target stays suspended.
func (c Command) Key() string {
	ctx := "<none>"
	if c.Context != nil {
		ctx = c.Context.String()
	}
	return fmt.Sprintf("%s|%s|%s|%d", c.Kind, ctx, c.Location, c.Count)
}

// String renders the command roughly as it would appear on the wire.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Kind.Operation())
	if c.Count > 1 {
		fmt.Fprintf(&b, " %d", c.Count)
	}
	if c.Location != "" {
		b.WriteString(" " + c.Location)
	}
	if c.Context != nil {
		b.WriteString(" @" + c.Context.String())
	}
	return b.String()
}

// Result is the successful output of a command.
type Result interface {
	isResult()
}

// Ack is the result of commands that only acknowledge (^done or ^running).
type Ack struct{}

func (Ack) isResult() {}

// ThreadIDs is the result of a thread-list-ids command.
type ThreadIDs struct {
	IDs []int
}

func (ThreadIDs) isResult() {}
