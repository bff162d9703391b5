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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/protocol"
)

func TestTranslate(t *testing.T) {
	orphan := execctx.NewOrphanThread(testSession, 4)

	tests := []struct {
		name           string
		raw            protocol.Event
		wantKind       EventKind
		wantContext    execctx.Context
		wantTriggering execctx.Context
		wantReason     Reason
	}{
		{
			name:        "container resume",
			raw:         protocol.Running(group, protocol.RunContinue),
			wantKind:    EventResumed,
			wantContext: group,
			wantReason:  ReasonUserRequest,
		},
		{
			name:           "thread stop is lifted to its container",
			raw:            protocol.Stopped(thread2, protocol.StopBreakpointHit),
			wantKind:       EventSuspended,
			wantContext:    group,
			wantTriggering: thread2,
			wantReason:     ReasonBreakpoint,
		},
		{
			name:           "frame resolves to its thread",
			raw:            protocol.Running(execctx.NewFrame(thread1, 0), protocol.RunFinish),
			wantKind:       EventResumed,
			wantContext:    group,
			wantTriggering: thread1,
			wantReason:     ReasonStep,
		},
		{
			name:        "orphan thread stays thread scoped",
			raw:         protocol.Stopped(orphan, protocol.StopSignalReceived),
			wantKind:    EventSuspended,
			wantContext: orphan,
			wantReason:  ReasonSignal,
		},
		{
			name:        "thread created",
			raw:         protocol.ThreadCreated(group, 8),
			wantKind:    EventThreadStarted,
			wantContext: execctx.NewThread(group, 8),
			wantReason:  ReasonUnknown,
		},
		{
			name:        "thread exited",
			raw:         protocol.ThreadExited(group, 8),
			wantKind:    EventThreadExited,
			wantContext: execctx.NewThread(group, 8),
			wantReason:  ReasonUnknown,
		},
		{
			name:       "shutdown",
			raw:        protocol.Shutdown("gdb exited"),
			wantKind:   EventTerminated,
			wantReason: ReasonUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := translate(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.wantContext, ev.Context)
			assert.Equal(t, tt.wantTriggering, ev.Triggering)
			assert.Equal(t, tt.wantReason, ev.Reason)
			assert.Equal(t, tt.raw, ev.Cause)
			assert.Equal(t, tt.raw.Detail, ev.Detail)
		})
	}
}

func TestTranslate_Unusable(t *testing.T) {
	_, ok := translate(protocol.Stopped(nil, protocol.StopBreakpointHit))
	assert.False(t, ok)

	_, ok = translate(protocol.Event{Kind: protocol.EventKind("library-loaded")})
	assert.False(t, ok)
}

func TestEvent_String(t *testing.T) {
	ev, ok := translate(protocol.Stopped(thread2, protocol.StopBreakpointHit))
	require.True(t, ok)
	assert.Equal(t, "suspended(breakpoint) s1.group[i1] by s1.group[i1].thread[2]", ev.String())
	assert.True(t, ev.ContainerScoped())

	ev, ok = translate(protocol.Shutdown(""))
	require.True(t, ok)
	assert.Equal(t, "terminated(unknown) <none>", ev.String())
	assert.False(t, ev.ContainerScoped())
}
