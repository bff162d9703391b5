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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/protocol"
)

const testSession = "s1"

var (
	group   = execctx.NewContainer(testSession, "i1")
	thread1 = execctx.NewThread(group, 1)
	thread2 = execctx.NewThread(group, 2)
)

// fakeTarget answers commands the way GDB does: the *running or *stopped
// notification is raised before the command completes.
type fakeTarget struct {
	mu      sync.Mutex
	sink    protocol.EventSink
	cmds    []protocol.Command
	reject  map[protocol.CommandKind]error
	threads []int
	// silent suppresses the notifications, leaving commands acknowledged
	// but their state change unconfirmed.
	silent bool
}

func (f *fakeTarget) QueueCommand(cmd protocol.Command, done protocol.CompletionFunc) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	err := f.reject[cmd.Kind]
	threads := append([]int(nil), f.threads...)
	sink, silent := f.sink, f.silent
	f.mu.Unlock()

	if err != nil {
		done(nil, err)
		return
	}

	switch cmd.Kind {
	case protocol.CommandThreadListIDs:
		done(protocol.ThreadIDs{IDs: threads}, nil)
		return
	case protocol.CommandInterrupt:
		if !silent {
			sink.Post(protocol.Stopped(cmd.Context, protocol.StopSignalReceived))
		}
	default:
		if run, ok := protocol.RunTypeFor(cmd.Kind); ok && !silent {
			sink.Post(protocol.Running(cmd.Context, run))
		}
	}
	done(protocol.Ack{}, nil)
}

func (f *fakeTarget) commands() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Command(nil), f.cmds...)
}

func (f *fakeTarget) setSilent(silent bool) {
	f.mu.Lock()
	f.silent = silent
	f.mu.Unlock()
}

func (f *fakeTarget) setReject(kind protocol.CommandKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject == nil {
		f.reject = make(map[protocol.CommandKind]error)
	}
	f.reject[kind] = err
}

// heldTarget holds every completion until release is called, then
// delivers them from another goroutine.
type heldTarget struct {
	mu      sync.Mutex
	pending []heldCommand
	queued  chan protocol.CommandKind
}

type heldCommand struct {
	cmd  protocol.Command
	done protocol.CompletionFunc
}

func newHeldTarget() *heldTarget {
	return &heldTarget{queued: make(chan protocol.CommandKind, 8)}
}

func (h *heldTarget) QueueCommand(cmd protocol.Command, done protocol.CompletionFunc) {
	h.mu.Lock()
	h.pending = append(h.pending, heldCommand{cmd: cmd, done: done})
	h.mu.Unlock()
	h.queued <- cmd.Kind
}

func (h *heldTarget) release() {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	go func() {
		for _, p := range pending {
			if p.cmd.Kind == protocol.CommandThreadListIDs {
				p.done(protocol.ThreadIDs{IDs: []int{1}}, nil)
				continue
			}
			p.done(protocol.Ack{}, nil)
		}
	}()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestService(t *testing.T, target *fakeTarget, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithSessionID(testSession)}, opts...)
	svc := New(target, opts...)
	target.sink = svc.Sink()
	t.Cleanup(svc.Close)
	return svc
}

// post delivers raw protocol events and waits until they are reconciled.
func post(t *testing.T, svc *Service, events ...protocol.Event) {
	t.Helper()
	for _, ev := range events {
		require.True(t, svc.Sink().Post(ev))
	}
	require.NoError(t, svc.Drain(testContext(t)))
}

// running resumes the whole container and waits for the resumed event.
func running(t *testing.T, svc *Service) {
	t.Helper()
	ctx := testContext(t)
	require.NoError(t, svc.Resume(ctx, group))
	require.NoError(t, svc.Drain(ctx))
	require.False(t, svc.IsSuspended(ctx, group))
}

// recorder collects published domain events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
