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

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/protocol"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// IsSuspended reports whether the session is suspended. It is false once
// the session has terminated.
func (s *Service) IsSuspended(ctx context.Context, c execctx.Context) bool {
	return read(ctx, s, func() bool { return !s.state.Terminated && s.state.Suspended })
}

// IsStepping reports whether a step is running. It is false once the
// session has terminated.
func (s *Service) IsStepping(ctx context.Context, c execctx.Context) bool {
	return read(ctx, s, func() bool { return !s.state.Terminated && s.state.Stepping })
}

// IsTerminated reports whether the debugger connection has shut down.
func (s *Service) IsTerminated(ctx context.Context) bool {
	return read(ctx, s, func() bool { return s.state.Terminated })
}

// State returns a snapshot of the session state.
func (s *Service) State(ctx context.Context) RunState {
	return read(ctx, s, func() RunState { return s.state })
}

// GetExecutionContexts lists the threads of container. A target that
// reports no threads yields the sentinel thread. The list is served from
// the cache while the container stays suspended.
func (s *Service) GetExecutionContexts(ctx context.Context, container execctx.Context) (threads []execctx.ThreadContext, err error) {
	ctx, end := s.telemetry.start(ctx, opGetExecutionContexts, container)
	defer func() { end(err) }()

	return query(ctx, s, opGetExecutionContexts, func(done func([]execctx.ThreadContext, error)) {
		group, ok := container.(execctx.ContainerContext)
		if !ok {
			done(nil, controlError(rcerrors.KindInvalidHandle, opGetExecutionContexts, container,
				"not a container context"))
			return
		}
		if s.state.Terminated {
			done(nil, s.stateError(opGetExecutionContexts, container, ""))
			return
		}

		s.cache.Execute(protocol.ThreadListIDs(group), func(result protocol.Result, err error) {
			if err != nil {
				done(nil, queryError(opGetExecutionContexts, group, err))
				return
			}
			ids, ok := result.(protocol.ThreadIDs)
			if !ok {
				done(nil, controlError(rcerrors.KindInternal, opGetExecutionContexts, group,
					"unexpected thread list result"))
				return
			}
			done(execctx.Threads(group, ids.IDs), nil)
		})
	})
}

// GetExecutionData reports why c last changed state. A container gets the
// session's last reason. A thread gets it only when it caused the change;
// any other thread gets ReasonContainer.
func (s *Service) GetExecutionData(ctx context.Context, c execctx.Context) (data ExecutionData, err error) {
	ctx, end := s.telemetry.start(ctx, opGetExecutionData, c)
	defer func() { end(err) }()

	return query(ctx, s, opGetExecutionData, func(done func(ExecutionData, error)) {
		last := ExecutionData{Reason: s.state.LastReason, Detail: s.state.LastDetail}
		switch v := c.(type) {
		case execctx.ContainerContext:
			done(last, nil)
		case execctx.ThreadContext:
			if s.state.LastTrigger != nil && s.state.LastTrigger == execctx.Context(v) {
				done(last, nil)
				return
			}
			done(ExecutionData{Reason: ReasonContainer}, nil)
		default:
			done(ExecutionData{}, controlError(rcerrors.KindInvalidHandle, opGetExecutionData, c,
				"not a container or thread context"))
		}
	})
}

// FlushCache drops cached results for c and its descendants, or all of
// them when c is nil. Use it when results may be stale for reasons the
// service cannot observe.
func (s *Service) FlushCache(ctx context.Context, c execctx.Context) {
	_ = s.exec.Call(ctx, func(context.Context) { s.cache.Invalidate(c) })
}

// SetFrameProvider replaces the stack service. nil means the stack service
// is unavailable and step-return is refused.
func (s *Service) SetFrameProvider(ctx context.Context, frames protocol.FrameProvider) {
	_ = s.exec.Call(ctx, func(context.Context) { s.frames = frames })
}

func queryError(op string, c execctx.Context, err error) error {
	if rcerrors.KindOf(err) != "" {
		return err
	}
	failure := rcerrors.NewControlError(rcerrors.KindRequestFailed, op, contextLabel(c), "query failed")
	failure.Cause = err
	return failure
}
