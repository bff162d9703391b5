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


// Package scenario loads and replays scripted run-control sessions.
//
// A scenario is a YAML document describing a simulated target and a list of
// steps. Each step performs one action, either a run-control operation on
// the session or a scripted change of the simulated target, waits until the
// session has reconciled everything the action caused, and then checks the
// step's expectations:
//
//	name: breakpoint-then-step
//	target:
//	  threads: [1, 2]
//	steps:
//	  - action: resume
//	    expect: "!suspended && pending == false"
//	  - action: hit
//	    thread: 2
//	    expect: "suspended && reason == 'breakpoint' && trigger == 2"
//	  - action: step
//	    thread: 1
//	    kind: over
//	    expect: "'resumed' in events && reason == 'step'"
//
// Expectations are expr-lang boolean expressions; see Evaluator for the
// variables they can use.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/tombee/runcontrol/internal/protocol"
	"github.com/tombee/runcontrol/internal/runcontrol"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// Action names a step action.
type Action string

const (
	// Run-control operations.
	ActionResume  Action = "resume"
	ActionSuspend Action = "suspend"
	ActionStep    Action = "step"
	ActionRunTo   Action = "run-to"
	ActionFlush   Action = "flush"
	ActionThreads Action = "threads"

	// Scripted target changes.
	ActionHit          Action = "hit"
	ActionSignal       Action = "signal"
	ActionStop         Action = "stop"
	ActionQueueStop    Action = "queue-stop"
	ActionCreateThread Action = "create-thread"
	ActionExitThread   Action = "exit-thread"
	ActionReject       Action = "reject"
	ActionAccept       Action = "accept"
	ActionShutdown     Action = "shutdown"

	// ActionCheck only evaluates the expectations.
	ActionCheck Action = "check"
)

var actions = []Action{
	ActionResume, ActionSuspend, ActionStep, ActionRunTo, ActionFlush, ActionThreads,
	ActionHit, ActionSignal, ActionStop, ActionQueueStop, ActionCreateThread,
	ActionExitThread, ActionReject, ActionAccept, ActionShutdown, ActionCheck,
}

var errorKinds = []rcerrors.Kind{
	rcerrors.KindInvalidState,
	rcerrors.KindNotSupported,
	rcerrors.KindInvalidHandle,
	rcerrors.KindInternal,
	rcerrors.KindRequestFailed,
}

// Scenario is a scripted session.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Target      Target `yaml:"target"`
	Steps       []Step `yaml:"steps"`
}

// Target configures the simulated debugger.
type Target struct {
	// Threads are the initial thread ids (default: [1]).
	Threads []int `yaml:"threads,omitempty"`

	// NoThreadIDs simulates a target that never reports thread ids.
	NoThreadIDs bool `yaml:"no_thread_ids,omitempty"`

	// CompletionDelay overrides the session's completion delay.
	CompletionDelay *int `yaml:"completion_delay,omitempty"`
}

// Step is one action plus its expectations.
type Step struct {
	Name   string `yaml:"name,omitempty"`
	Action Action `yaml:"action"`

	// Thread selects a thread. Without it, operations address the
	// container and target changes name no thread.
	Thread *int `yaml:"thread,omitempty"`

	// Kind is the step kind for step actions.
	Kind string `yaml:"kind,omitempty"`

	// Location is the run-to location.
	Location string `yaml:"location,omitempty"`

	SkipBreakpoints bool `yaml:"skip_breakpoints,omitempty"`

	// Cause is the stop cause for stop and queue-stop, using the MI reason
	// names such as "watchpoint-trigger".
	Cause string `yaml:"cause,omitempty"`

	// Detail is the signal name, stop detail or shutdown message.
	Detail string `yaml:"detail,omitempty"`

	// Command and Message configure reject and accept.
	Command string `yaml:"command,omitempty"`
	Message string `yaml:"message,omitempty"`

	// ExpectError is the error kind the action must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect is a boolean expression that must hold after the step.
	Expect string `yaml:"expect,omitempty"`
}

// Label returns the step name, or its action when it has none.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Action)
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &rcerrors.NotFoundError{Resource: "scenario", ID: path}
		}
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario document. Unknown fields are
// rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, &rcerrors.ValidationError{
			Message: fmt.Sprintf("invalid scenario YAML: %v", err),
			Hint:    "check indentation and field names",
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for errors that can be found before it runs,
// including expressions that do not compile.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return &rcerrors.ValidationError{Field: "name", Message: "scenario name is required"}
	}
	if len(sc.Steps) == 0 {
		return &rcerrors.ValidationError{Field: "steps", Message: "scenario has no steps"}
	}
	if d := sc.Target.CompletionDelay; d != nil && *d < 0 {
		return &rcerrors.ValidationError{Field: "target.completion_delay", Message: "must not be negative"}
	}

	eval := NewEvaluator()
	for i, step := range sc.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if !slices.Contains(actions, step.Action) {
			return &rcerrors.ValidationError{
				Field:   field + ".action",
				Message: fmt.Sprintf("unknown action %q", step.Action),
				Hint:    fmt.Sprintf("use one of %v", actions),
			}
		}
		if err := step.validate(field); err != nil {
			return err
		}
		if step.Expect != "" {
			if _, err := eval.compile(step.Expect); err != nil {
				return &rcerrors.ValidationError{
					Field:   field + ".expect",
					Message: err.Error(),
				}
			}
		}
	}
	return nil
}

func (s Step) validate(field string) error {
	switch s.Action {
	case ActionStep:
		if !slices.Contains(runcontrol.StepKinds, runcontrol.StepKind(s.Kind)) {
			return &rcerrors.ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown step kind %q", s.Kind),
				Hint:    fmt.Sprintf("use one of %v", runcontrol.StepKinds),
			}
		}
	case ActionRunTo:
		if s.Location == "" {
			return &rcerrors.ValidationError{Field: field + ".location", Message: "run-to needs a location"}
		}
	case ActionHit, ActionSignal, ActionCreateThread, ActionExitThread:
		if s.Thread == nil {
			return &rcerrors.ValidationError{Field: field + ".thread", Message: fmt.Sprintf("%s needs a thread", s.Action)}
		}
	case ActionStop, ActionQueueStop:
		if s.Cause == "" {
			return &rcerrors.ValidationError{Field: field + ".cause", Message: fmt.Sprintf("%s needs a cause", s.Action)}
		}
	case ActionReject, ActionAccept:
		if _, ok := protocol.RunTypeFor(protocol.CommandKind(s.Command)); !ok &&
			s.Command != string(protocol.CommandInterrupt) &&
			s.Command != string(protocol.CommandThreadListIDs) {
			return &rcerrors.ValidationError{Field: field + ".command", Message: fmt.Sprintf("unknown command %q", s.Command)}
		}
	case ActionCheck:
		if s.Expect == "" {
			return &rcerrors.ValidationError{Field: field + ".expect", Message: "check step has nothing to check"}
		}
	}
	if s.ExpectError != "" && !slices.Contains(errorKinds, rcerrors.Kind(s.ExpectError)) {
		return &rcerrors.ValidationError{
			Field:   field + ".expect_error",
			Message: fmt.Sprintf("unknown error kind %q", s.ExpectError),
			Hint:    fmt.Sprintf("use one of %v", errorKinds),
		}
	}
	return nil
}
