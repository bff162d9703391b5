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
	"github.com/tombee/runcontrol/internal/execctx"
)

// Reason says why the target last changed state.
type Reason string

const (
	ReasonBreakpoint    Reason = "breakpoint"
	ReasonStep          Reason = "step"
	ReasonSharedLibrary Reason = "shared-library"
	ReasonSignal        Reason = "signal"
	ReasonWatchpoint    Reason = "watchpoint"
	ReasonError         Reason = "error"
	ReasonUserRequest   Reason = "user-request"
	// ReasonContainer is reported for a thread whose state changed because
	// its whole container did.
	ReasonContainer Reason = "container"
	ReasonUnknown   Reason = "unknown"
)

// StepKind selects how far a step runs.
type StepKind string

const (
	StepInto            StepKind = "into"
	StepOver            StepKind = "over"
	StepReturn          StepKind = "return"
	StepInstructionInto StepKind = "instruction-into"
	StepInstructionOver StepKind = "instruction-over"
)

// StepKinds lists every supported step kind.
var StepKinds = []StepKind{StepInto, StepOver, StepReturn, StepInstructionInto, StepInstructionOver}

// Phase is the coarse position of a session in its state machine.
type Phase string

const (
	PhaseSuspended  Phase = "suspended"
	PhaseRunning    Phase = "running"
	PhaseStepping   Phase = "stepping"
	PhaseTerminated Phase = "terminated"
)

// RunState is the run-control state of one session.
type RunState struct {
	Suspended bool
	// ResumePending is set between issuing a resume, step or run-to command
	// and either its rejection or the matching resumed event.
	ResumePending bool
	Stepping      bool
	// Terminated never goes back to false.
	Terminated bool

	LastReason Reason
	// LastTrigger is the context that caused the last state change, or nil
	// when a container changed state without naming a thread.
	LastTrigger execctx.Context
	// LastDetail is free text from the last state change, such as a
	// signal name.
	LastDetail string
}

func initialState() RunState {
	return RunState{Suspended: true, LastReason: ReasonUnknown}
}

// Phase derives the state machine position from the flags.
func (s RunState) Phase() Phase {
	switch {
	case s.Terminated:
		return PhaseTerminated
	case s.Suspended:
		return PhaseSuspended
	case s.Stepping:
		return PhaseStepping
	default:
		return PhaseRunning
	}
}

// ExecutionData describes the last state change as seen from one context.
type ExecutionData struct {
	Reason Reason
	Detail string
}
