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
	"context"
	"log/slog"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// CanResume reports whether Resume would be accepted for c.
func (s *Service) CanResume(ctx context.Context, c execctx.Context) bool {
	return read(ctx, s, func() bool { return c != nil && s.canResume() })
}

// CanSuspend reports whether Suspend would be accepted for c.
func (s *Service) CanSuspend(ctx context.Context, c execctx.Context) bool {
	return read(ctx, s, func() bool { return c != nil && s.canSuspend() })
}

// CanStep reports whether Step would be accepted for c. Containers cannot
// be stepped.
func (s *Service) CanStep(ctx context.Context, c execctx.Context, kind StepKind) bool {
	return read(ctx, s, func() bool {
		if c == nil || execctx.IsContainer(c) || !validStepKind(kind) {
			return false
		}
		_, ok := execctx.ThreadOf(c)
		return ok && s.canResume()
	})
}

// Resume continues c: the whole container when c is a container, otherwise
// its thread. The command is accepted once the debugger acknowledges it;
// the state changes to running only when the matching event arrives.
func (s *Service) Resume(ctx context.Context, c execctx.Context) (err error) {
	ctx, end := s.telemetry.start(ctx, opResume, c)
	defer func() { end(err) }()

	return s.run(ctx, opResume, func(done func(error)) {
		if c == nil {
			done(controlError(rcerrors.KindInvalidHandle, opResume, c, "no execution context"))
			return
		}
		if !s.canResume() {
			done(s.stateError(opResume, c, "context is not suspended or a resume is already pending"))
			return
		}
		target, ok := controlTarget(c)
		if !ok {
			done(controlError(rcerrors.KindNotSupported, opResume, c, "no thread to resume"))
			return
		}

		prev := s.beginResume(c, false)
		s.issue(opResume, protocol.Continue(target), func() { s.rollbackResume(c, prev) }, done)
	})
}

// Suspend interrupts the container, or the thread of c when c is not a
// container.
func (s *Service) Suspend(ctx context.Context, c execctx.Context) (err error) {
	ctx, end := s.telemetry.start(ctx, opSuspend, c)
	defer func() { end(err) }()

	return s.run(ctx, opSuspend, func(done func(error)) {
		if c == nil {
			done(controlError(rcerrors.KindInvalidHandle, opSuspend, c, "no execution context"))
			return
		}
		if !s.canSuspend() {
			done(s.stateError(opSuspend, c, "context is already suspended"))
			return
		}
		target, ok := controlTarget(c)
		if !ok {
			done(controlError(rcerrors.KindNotSupported, opSuspend, c, "no thread to suspend"))
			return
		}
		s.issue(opSuspend, protocol.Interrupt(target), nil, done)
	})
}

// Step runs the thread of c by one unit of kind. StepReturn always
// finishes the top frame, whichever frame is selected, and needs a frame
// provider.
func (s *Service) Step(ctx context.Context, c execctx.Context, kind StepKind) (err error) {
	ctx, end := s.telemetry.start(ctx, opStep, c)
	defer func() { end(err) }()

	return s.run(ctx, opStep, func(done func(error)) {
		if c == nil {
			done(controlError(rcerrors.KindInvalidHandle, opStep, c, "no execution context"))
			return
		}
		if s.state.Terminated {
			done(s.stateError(opStep, c, ""))
			return
		}
		thread, ok := execctx.ThreadOf(c)
		if !ok {
			done(controlError(rcerrors.KindNotSupported, opStep, c, "stepping needs a thread context"))
			return
		}
		if !s.canResume() {
			done(s.stateError(opStep, c, "context is not suspended or a resume is already pending"))
			return
		}
		cmd, err := s.stepCommand(thread, kind)
		if err != nil {
			done(err)
			return
		}

		prev := s.beginResume(c, true)
		s.issue(opStep, cmd, func() { s.rollbackResume(c, prev) }, done)
	})
}

// RunToLocation resumes the thread of c until it reaches location.
//
// skipBreakpoints is accepted for interface compatibility and logged, but
// breakpoints still stop the target.
func (s *Service) RunToLocation(ctx context.Context, c execctx.Context, location string, skipBreakpoints bool) (err error) {
	ctx, end := s.telemetry.start(ctx, opRunToLocation, c)
	defer func() { end(err) }()

	return s.run(ctx, opRunToLocation, func(done func(error)) {
		if c == nil {
			done(controlError(rcerrors.KindInvalidHandle, opRunToLocation, c, "no execution context"))
			return
		}
		if s.state.Terminated {
			done(s.stateError(opRunToLocation, c, ""))
			return
		}
		thread, ok := execctx.ThreadOf(c)
		if !ok {
			done(controlError(rcerrors.KindNotSupported, opRunToLocation, c, "run to location needs a thread context"))
			return
		}
		if !s.canResume() {
			done(s.stateError(opRunToLocation, c, "context is not suspended or a resume is already pending"))
			return
		}
		if skipBreakpoints {
			s.logger.Debug("skip-breakpoints is not implemented, breakpoints stay active",
				log.Context(c), slog.String("location", location))
		}

		prev := s.beginResume(c, false)
		s.issue(opRunToLocation, protocol.Until(thread, location), func() { s.rollbackResume(c, prev) }, done)
	})
}

func (s *Service) canResume() bool {
	return !s.state.Terminated && s.state.Suspended && !s.state.ResumePending
}

func (s *Service) canSuspend() bool {
	return !s.state.Terminated && !s.state.Suspended
}

func (s *Service) stateError(op string, c execctx.Context, detail string) error {
	if s.state.Terminated {
		detail = "session terminated"
	}
	return controlError(rcerrors.KindInvalidState, op, c, detail)
}

func (s *Service) stepCommand(thread execctx.ThreadContext, kind StepKind) (protocol.Command, error) {
	switch kind {
	case StepInto:
		return protocol.Step(thread), nil
	case StepOver:
		return protocol.Next(thread), nil
	case StepInstructionInto:
		return protocol.StepInstruction(thread), nil
	case StepInstructionOver:
		return protocol.NextInstruction(thread), nil
	case StepReturn:
		if s.frames == nil {
			return protocol.Command{}, controlError(rcerrors.KindNotSupported, opStep, thread,
				"stack service not available")
		}
		return protocol.Finish(s.frames.CreateFrameContext(thread, 0)), nil
	default:
		return protocol.Command{}, controlError(rcerrors.KindInternal, opStep, thread,
			"unknown step kind "+string(kind))
	}
}

func validStepKind(kind StepKind) bool {
	for _, k := range StepKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// controlTarget picks what a resume or interrupt is addressed to.
func controlTarget(c execctx.Context) (execctx.Context, bool) {
	if execctx.IsContainer(c) {
		return c, true
	}
	thread, ok := execctx.ThreadOf(c)
	if !ok {
		return nil, false
	}
	return thread, true
}

// beginResume marks a resume as pending and returns the stepping flag to
// restore if the command is rejected.
func (s *Service) beginResume(c execctx.Context, stepping bool) bool {
	prev := s.state.Stepping
	s.state.ResumePending = true
	if stepping {
		s.state.Stepping = true
	}
	s.cache.SetAvailability(c, false)
	return prev
}

// rollbackResume undoes beginResume unless a resumed event has already
// settled the pending flag.
func (s *Service) rollbackResume(c execctx.Context, prevStepping bool) {
	if !s.state.ResumePending {
		return
	}
	s.state.ResumePending = false
	s.state.Stepping = prevStepping
	s.cache.SetAvailability(c, true)
}

// issue sends cmd and reports its completion to done. A rejected command
// runs rollback before done sees the error.
func (s *Service) issue(op string, cmd protocol.Command, rollback func(), done func(error)) {
	s.logger.Debug("issuing command", log.Command(cmd.String()))
	s.send(cmd, func(_ protocol.Result, err error) {
		if err == nil {
			done(nil)
			return
		}
		if rollback != nil {
			rollback()
		}
		s.logger.Warn("command rejected", log.Command(cmd.String()), log.Error(err))
		failure := rcerrors.NewControlError(rcerrors.KindRequestFailed, op, contextLabel(cmd.Context), "command rejected")
		failure.Cause = err
		done(failure)
	})
}
