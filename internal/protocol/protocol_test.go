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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tombee/runcontrol/internal/execctx"
)

func TestCommand_Key(t *testing.T) {
	c := execctx.NewContainer("s1", "i1")
	th := execctx.NewThread(c, 2)

	assert.Equal(t, ThreadListIDs(c).Key(), ThreadListIDs(c).Key())
	assert.NotEqual(t, ThreadListIDs(c).Key(), ThreadListIDs(execctx.NewContainer("s1", "i2")).Key())
	assert.NotEqual(t, Until(th, "main.c:10").Key(), Until(th, "main.c:11").Key())
	assert.NotEqual(t, Step(th).Key(), Next(th).Key())
	assert.Equal(t, "continue|<none>||0", Command{Kind: CommandContinue}.Key())
}

func TestCommand_String(t *testing.T) {
	c := execctx.NewContainer("s1", "i1")
	th := execctx.NewThread(c, 2)

	tests := []struct {
		cmd  Command
		want string
	}{
		{Continue(c), "-exec-continue @s1.group[i1]"},
		{Interrupt(th), "-exec-interrupt @s1.group[i1].thread[2]"},
		{Until(th, "foo.c:12"), "-exec-until foo.c:12 @s1.group[i1].thread[2]"},
		{Finish(execctx.NewFrame(th, 0)), "-exec-finish @s1.group[i1].thread[2].frame[0]"},
		{ThreadListIDs(c), "-thread-list-ids @s1.group[i1]"},
		{Command{Kind: CommandStep, Context: th, Count: 3}, "-exec-step 3 @s1.group[i1].thread[2]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestRunTypeFor(t *testing.T) {
	tests := []struct {
		kind CommandKind
		want RunType
		ok   bool
	}{
		{CommandContinue, RunContinue, true},
		{CommandNext, RunNext, true},
		{CommandNextInstruction, RunNextInstruction, true},
		{CommandStep, RunStep, true},
		{CommandStepInstruction, RunStepInstruction, true},
		{CommandFinish, RunFinish, true},
		{CommandUntil, RunUntil, true},
		{CommandInterrupt, "", false},
		{CommandThreadListIDs, "", false},
	}

	for _, tt := range tests {
		got, ok := RunTypeFor(tt.kind)
		assert.Equal(t, tt.want, got, string(tt.kind))
		assert.Equal(t, tt.ok, ok, string(tt.kind))
	}
}

func TestEvent_String(t *testing.T) {
	c := execctx.NewContainer("s1", "i1")
	th := execctx.NewThread(c, 2)

	assert.Equal(t, "*running(continue) s1.group[i1]", Running(c, RunContinue).String())
	assert.Equal(t, "*stopped(breakpoint-hit) s1.group[i1].thread[2]", Stopped(th, StopBreakpointHit).String())
	assert.Equal(t, "=thread-created id=4 s1.group[i1]", ThreadCreated(c, 4).String())
	assert.Equal(t, "=thread-exited s1.group[i1]", Event{Kind: EventThreadExited, Context: c}.String())
	assert.Equal(t, "shutdown gdb exited", Shutdown("gdb exited").String())
}

func TestAdapters(t *testing.T) {
	var got Command
	var tr Transport = TransportFunc(func(cmd Command, done CompletionFunc) {
		got = cmd
		done(Ack{}, nil)
	})

	called := false
	tr.QueueCommand(Continue(execctx.NewContainer("s", "g")), func(r Result, err error) {
		called = true
		assert.NoError(t, err)
		assert.Equal(t, Ack{}, r)
	})
	assert.True(t, called)
	assert.Equal(t, CommandContinue, got.Kind)

	th := execctx.NewThread(execctx.NewContainer("s", "g"), 1)
	var fp FrameProvider = FrameProviderFunc(execctx.NewFrame)
	assert.Equal(t, execctx.NewFrame(th, 0), fp.CreateFrameContext(th, 0))
}
