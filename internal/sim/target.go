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


// Package sim provides an in-memory GDB/MI target for exercising the
// run-control engine without a debugger.
//
// A Target answers the commands a run-control session sends and raises the
// asynchronous notifications a real all-stop GDB would raise, in the same
// order: the *running notification of a resume precedes its completion, and
// the *stopped notification of a finished step follows it. Tests and
// scenarios drive everything else (breakpoint hits, signals, thread churn,
// command failures, connection loss) through the scripting methods.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
)

// ErrDisconnected is returned for commands sent after Shutdown.
var ErrDisconnected = errors.New("debugger connection closed")

// ErrRunning is returned for commands that need a stopped target.
var ErrRunning = errors.New("cannot execute this command while the target is running")

// Config configures a Target.
type Config struct {
	// Session is the id used for the contexts the target reports.
	Session string

	// GroupID is the thread group id (default: "i1").
	GroupID string

	// Threads are the initial thread ids (default: [1]).
	Threads []int

	// NoThreadIDs models a target that never reports thread ids: thread
	// lists come back empty and notifications name only the container.
	NoThreadIDs bool

	Logger *slog.Logger
}

// Stop describes a scripted stop.
type Stop struct {
	// Thread is the thread that stopped. Zero names no thread.
	Thread int
	Cause  protocol.StopCause
	Detail string
}

// Target is a simulated debugger. It is safe for concurrent use.
type Target struct {
	logger    *slog.Logger
	container execctx.ContainerContext
	noIDs     bool

	mu         sync.Mutex
	sink       protocol.EventSink
	threads    []int
	running    bool
	terminated bool
	queued     []Stop
	rejects    map[protocol.CommandKind]error
	commands   []protocol.Command
}

// New creates a suspended target.
func New(cfg Config) *Target {
	if cfg.GroupID == "" {
		cfg.GroupID = "i1"
	}
	threads := slices.Clone(cfg.Threads)
	if len(threads) == 0 && !cfg.NoThreadIDs {
		threads = []int{1}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Target{
		logger:    log.WithComponent(logger, "sim"),
		container: execctx.NewContainer(cfg.Session, cfg.GroupID),
		noIDs:     cfg.NoThreadIDs,
		threads:   threads,
		rejects:   make(map[protocol.CommandKind]error),
	}
}

// Attach sets where notifications are posted.
func (t *Target) Attach(sink protocol.EventSink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

// Container returns the context of the simulated process.
func (t *Target) Container() execctx.ContainerContext {
	return t.container
}

// Thread returns the context of a thread of the simulated process.
func (t *Target) Thread(id int) execctx.ThreadContext {
	return execctx.NewThread(t.container, id)
}

// CreateFrameContext implements protocol.FrameProvider.
func (t *Target) CreateFrameContext(thread execctx.ThreadContext, level int) execctx.FrameContext {
	return execctx.NewFrame(thread, level)
}

// QueueCommand implements protocol.Transport.
func (t *Target) QueueCommand(cmd protocol.Command, done protocol.CompletionFunc) {
	t.mu.Lock()
	t.commands = append(t.commands, cmd)
	if t.terminated {
		t.mu.Unlock()
		done(nil, ErrDisconnected)
		return
	}
	if err := t.rejects[cmd.Kind]; err != nil {
		t.mu.Unlock()
		t.logger.Debug("rejecting command", log.Command(cmd.Kind.Operation()), log.Error(err))
		done(nil, err)
		return
	}

	switch cmd.Kind {
	case protocol.CommandThreadListIDs:
		ids := slices.Clone(t.threads)
		if t.noIDs {
			ids = nil
		}
		t.mu.Unlock()
		done(protocol.ThreadIDs{IDs: ids}, nil)

	case protocol.CommandInterrupt:
		if !t.running {
			t.mu.Unlock()
			done(protocol.Ack{}, nil)
			return
		}
		t.running = false
		t.mu.Unlock()
		done(protocol.Ack{}, nil)
		t.post(t.stopped(Stop{Cause: protocol.StopSignalReceived, Detail: "SIGINT"}))

	default:
		run, ok := protocol.RunTypeFor(cmd.Kind)
		if !ok {
			t.mu.Unlock()
			done(nil, fmt.Errorf("undefined command: %s", cmd.Kind.Operation()))
			return
		}
		if t.running {
			t.mu.Unlock()
			done(nil, ErrRunning)
			return
		}
		t.running = true
		next, scripted := t.popStop()
		if !scripted && cmd.Kind != protocol.CommandContinue {
			next, scripted = Stop{Thread: threadID(cmd.Context), Cause: stepStop(cmd.Kind)}, true
		}
		if scripted {
			t.running = false
		}
		t.mu.Unlock()

		t.post(protocol.Running(t.reported(cmd.Context), run))
		done(protocol.Ack{}, nil)
		if scripted {
			t.post(t.stopped(next))
		}
	}
}

// QueueStop makes the next resume or step end with s instead of running
// freely or finishing normally.
func (t *Target) QueueStop(s Stop) {
	t.mu.Lock()
	t.queued = append(t.queued, s)
	t.mu.Unlock()
}

// HitBreakpoint stops the running target at a breakpoint in thread.
func (t *Target) HitBreakpoint(thread int) error {
	return t.StopWith(Stop{Thread: thread, Cause: protocol.StopBreakpointHit})
}

// Signal stops the running target with a signal delivered to thread.
func (t *Target) Signal(thread int, name string) error {
	return t.StopWith(Stop{Thread: thread, Cause: protocol.StopSignalReceived, Detail: name})
}

// StopWith stops the running target.
func (t *Target) StopWith(s Stop) error {
	t.mu.Lock()
	if err := t.liveLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	if !t.running {
		t.mu.Unlock()
		return fmt.Errorf("target is not running")
	}
	t.running = false
	t.mu.Unlock()

	t.post(t.stopped(s))
	return nil
}

// CreateThread adds a thread and announces it.
func (t *Target) CreateThread(id int) error {
	t.mu.Lock()
	if err := t.liveLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	if slices.Contains(t.threads, id) {
		t.mu.Unlock()
		return fmt.Errorf("thread %d already exists", id)
	}
	t.threads = append(t.threads, id)
	t.mu.Unlock()

	t.post(protocol.ThreadCreated(t.container, id))
	return nil
}

// ExitThread removes a thread and announces it.
func (t *Target) ExitThread(id int) error {
	t.mu.Lock()
	if err := t.liveLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	i := slices.Index(t.threads, id)
	if i < 0 {
		t.mu.Unlock()
		return fmt.Errorf("unknown thread %d", id)
	}
	t.threads = slices.Delete(t.threads, i, i+1)
	t.mu.Unlock()

	t.post(protocol.ThreadExited(t.container, id))
	return nil
}

// Reject makes every command of kind fail with err until Accept is called.
func (t *Target) Reject(kind protocol.CommandKind, err error) {
	t.mu.Lock()
	t.rejects[kind] = err
	t.mu.Unlock()
}

// Accept undoes Reject.
func (t *Target) Accept(kind protocol.CommandKind) {
	t.mu.Lock()
	delete(t.rejects, kind)
	t.mu.Unlock()
}

// Shutdown drops the connection. Later commands fail with ErrDisconnected.
func (t *Target) Shutdown(detail string) {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	t.terminated = true
	t.running = false
	t.mu.Unlock()

	t.post(protocol.Shutdown(detail))
}

// Running reports whether the simulated process is running.
func (t *Target) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Threads returns the current thread ids.
func (t *Target) Threads() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.threads)
}

// Commands returns the commands received so far.
func (t *Target) Commands() []protocol.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.commands)
}

func (t *Target) liveLocked() error {
	if t.terminated {
		return ErrDisconnected
	}
	return nil
}

func (t *Target) popStop() (Stop, bool) {
	if len(t.queued) == 0 {
		return Stop{}, false
	}
	s := t.queued[0]
	t.queued = t.queued[1:]
	return s, true
}

// stopped builds the *stopped notification for s. All-stop GDB names the
// thread that stopped when it knows one.
func (t *Target) stopped(s Stop) protocol.Event {
	var ctx execctx.Context = t.container
	if s.Thread != 0 && !t.noIDs {
		ctx = t.Thread(s.Thread)
	}
	ev := protocol.Stopped(ctx, s.Cause)
	ev.Detail = s.Detail
	return ev
}

// reported maps a command target to the context the notification names.
func (t *Target) reported(c execctx.Context) execctx.Context {
	if t.noIDs {
		return t.container
	}
	if thread, ok := execctx.ThreadOf(c); ok {
		return thread
	}
	return t.container
}

func (t *Target) post(ev protocol.Event) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink == nil {
		t.logger.Warn("no sink attached, notification dropped", log.Event(string(ev.Kind)))
		return
	}
	t.logger.Debug("posting notification", log.Event(string(ev.Kind)), log.Context(ev.Context))
	sink.Post(ev)
}

func threadID(c execctx.Context) int {
	if thread, ok := execctx.ThreadOf(c); ok {
		return thread.ThreadID
	}
	return 0
}

func stepStop(kind protocol.CommandKind) protocol.StopCause {
	switch kind {
	case protocol.CommandFinish:
		return protocol.StopFunctionFinished
	case protocol.CommandUntil:
		return protocol.StopLocationReached
	default:
		return protocol.StopEndSteppingRange
	}
}
