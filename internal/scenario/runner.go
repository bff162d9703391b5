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


package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
	"github.com/tombee/runcontrol/internal/runcontrol"
	"github.com/tombee/runcontrol/internal/sim"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

const tracerName = "github.com/tombee/runcontrol/internal/scenario"

// DefaultStepTimeout bounds how long one step may take to settle.
const DefaultStepTimeout = 5 * time.Second

// Observer receives the domain events of replayed sessions.
type Observer interface {
	Listener(sessionID string) func(context.Context, runcontrol.Event)
}

// Options configures a Runner.
type Options struct {
	Logger *slog.Logger

	// SessionID is the id of the replayed session (default: a random UUID).
	SessionID string

	// CompletionDelay is passed to the session unless the scenario sets
	// its own. Zero applies completions without delay.
	CompletionDelay int

	// DisableFrames leaves the session without a stack service, so
	// step-return is not supported.
	DisableFrames bool

	// TracerProvider and MeterProvider default to the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	Observers []Observer

	// StepTimeout defaults to DefaultStepTimeout.
	StepTimeout time.Duration
}

// Runner replays scenarios against a simulated target.
type Runner struct {
	opts   Options
	logger *slog.Logger
	eval   *Evaluator
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	return &Runner{
		opts:   opts,
		logger: log.WithComponent(opts.Logger, "scenario"),
		eval:   NewEvaluator(),
	}
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int
	Label  string
	Action Action

	// Err is the error returned by the action, if any.
	Err error

	// Events are the domain events published while the step settled.
	Events []string

	// Commands are the debugger operations the step caused.
	Commands []string

	// Failure explains why the step failed. It is empty when it passed.
	Failure string

	Duration time.Duration
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return r.Failure == ""
}

// Report is the outcome of a replay.
type Report struct {
	Scenario  string
	SessionID string
	Steps     []StepResult

	// Skipped counts the steps not run after the first failure.
	Skipped int

	// Final is the session state after the last step that ran.
	Final runcontrol.RunState
}

// Passed reports whether every step passed.
func (r *Report) Passed() bool {
	if r.Skipped > 0 {
		return false
	}
	for _, s := range r.Steps {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Failed returns the first failed step, if any.
func (r *Report) Failed() (StepResult, bool) {
	for _, s := range r.Steps {
		if !s.Passed() {
			return s, true
		}
	}
	return StepResult{}, false
}

// eventLog collects the kinds of published domain events.
type eventLog struct {
	mu    sync.Mutex
	kinds []string
}

func (l *eventLog) listen(_ context.Context, ev runcontrol.Event) {
	l.mu.Lock()
	l.kinds = append(l.kinds, string(ev.Kind))
	l.mu.Unlock()
}

func (l *eventLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.kinds
	l.kinds = nil
	return out
}

// Run replays sc. Steps run until the first failure. The returned error is
// only set when the replay itself could not proceed.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (report *Report, err error) {
	sessionID := r.opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	delay := r.opts.CompletionDelay
	if sc.Target.CompletionDelay != nil {
		delay = *sc.Target.CompletionDelay
	}
	logger := log.WithSession(r.logger, sessionID)

	ctx, span := r.opts.TracerProvider.Tracer(tracerName).Start(ctx, "scenario "+sc.Name,
		trace.WithAttributes(
			attribute.String("scenario.name", sc.Name),
			attribute.String("runcontrol.session", sessionID),
		))
	defer func() {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case !report.Passed():
			span.SetStatus(codes.Error, "scenario failed")
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	target := sim.New(sim.Config{
		Session:     sessionID,
		Threads:     sc.Target.Threads,
		NoThreadIDs: sc.Target.NoThreadIDs,
		Logger:      r.opts.Logger,
	})
	svcOpts := []runcontrol.Option{
		runcontrol.WithSessionID(sessionID),
		runcontrol.WithLogger(r.opts.Logger),
		runcontrol.WithCompletionDelay(delay),
		runcontrol.WithTracerProvider(r.opts.TracerProvider),
		runcontrol.WithMeterProvider(r.opts.MeterProvider),
	}
	if !r.opts.DisableFrames {
		svcOpts = append(svcOpts, runcontrol.WithFrameProvider(target))
	}
	svc := runcontrol.New(target, svcOpts...)
	defer svc.Close()
	target.Attach(svc.Sink())

	events := &eventLog{}
	svc.Subscribe(events.listen)
	for _, o := range r.opts.Observers {
		svc.Subscribe(o.Listener(sessionID))
	}

	report = &Report{Scenario: sc.Name, SessionID: sessionID}
	logger.Info("replaying scenario", slog.String("scenario", sc.Name), slog.Int("steps", len(sc.Steps)))

	for i, step := range sc.Steps {
		res, err := r.runStep(ctx, svc, target, events, i, step)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, res)
		if !res.Passed() {
			report.Skipped = len(sc.Steps) - i - 1
			logger.Warn("step failed",
				slog.Int("step", i),
				slog.String("label", res.Label),
				slog.String("failure", res.Failure))
			break
		}
	}

	report.Final = svc.State(ctx)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, svc *runcontrol.Service, target *sim.Target,
	events *eventLog, index int, step Step) (StepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StepTimeout)
	defer cancel()
	ctx, span := r.opts.TracerProvider.Tracer(tracerName).Start(ctx, "step "+step.Label(),
		trace.WithAttributes(
			attribute.Int("scenario.step", index),
			attribute.String("scenario.action", string(step.Action)),
		))
	defer span.End()

	res := StepResult{Index: index, Label: step.Label(), Action: step.Action}
	sent := len(target.Commands())
	start := time.Now()

	r.logger.Debug("running step", slog.Int("step", index), slog.String("action", string(step.Action)))
	threads, actionErr := r.perform(ctx, svc, target, step)
	if err := svc.Drain(ctx); err != nil {
		return res, fmt.Errorf("step %d (%s) did not settle: %w", index, res.Label, err)
	}
	res.Duration = time.Since(start)
	res.Err = actionErr
	res.Events = events.take()
	for _, cmd := range target.Commands()[sent:] {
		res.Commands = append(res.Commands, cmd.Kind.Operation())
	}

	switch {
	case step.ExpectError != "":
		if got := rcerrors.KindOf(actionErr); string(got) != step.ExpectError {
			res.Failure = fmt.Sprintf("expected %s error, got %v", step.ExpectError, describe(actionErr))
		}
	case actionErr != nil:
		res.Failure = fmt.Sprintf("action failed: %v", actionErr)
	}
	if res.Failure == "" && step.Expect != "" {
		result := r.eval.Evaluate(step.Expect, r.env(ctx, svc, target, res, threads))
		switch {
		case result.Error != nil:
			res.Failure = result.Error.Error()
		case !result.Passed:
			res.Failure = fmt.Sprintf("expectation not met: %s", step.Expect)
		}
	}

	if res.Failure != "" {
		span.SetStatus(codes.Error, res.Failure)
	}
	return res, nil
}

func describe(err error) string {
	if err == nil {
		return "no error"
	}
	return err.Error()
}

// perform runs the step's action. It returns the thread list for threads
// actions.
func (r *Runner) perform(ctx context.Context, svc *runcontrol.Service, target *sim.Target, step Step) ([]int, error) {
	var c execctx.Context = target.Container()
	if step.Thread != nil {
		c = target.Thread(*step.Thread)
	}

	switch step.Action {
	case ActionResume:
		return nil, svc.Resume(ctx, c)
	case ActionSuspend:
		return nil, svc.Suspend(ctx, c)
	case ActionStep:
		return nil, svc.Step(ctx, r.thread(target, step), runcontrol.StepKind(step.Kind))
	case ActionRunTo:
		return nil, svc.RunToLocation(ctx, r.thread(target, step), step.Location, step.SkipBreakpoints)
	case ActionFlush:
		svc.FlushCache(ctx, c)
		return nil, nil
	case ActionThreads:
		list, err := svc.GetExecutionContexts(ctx, c)
		if err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(list))
		for _, t := range list {
			ids = append(ids, t.ThreadID)
		}
		return ids, nil

	case ActionHit:
		return nil, target.HitBreakpoint(*step.Thread)
	case ActionSignal:
		return nil, target.Signal(*step.Thread, step.Detail)
	case ActionStop:
		return nil, target.StopWith(stopFor(step))
	case ActionQueueStop:
		target.QueueStop(stopFor(step))
		return nil, nil
	case ActionCreateThread:
		return nil, target.CreateThread(*step.Thread)
	case ActionExitThread:
		return nil, target.ExitThread(*step.Thread)
	case ActionReject:
		msg := step.Message
		if msg == "" {
			msg = "command rejected by target"
		}
		target.Reject(protocol.CommandKind(step.Command), errors.New(msg))
		return nil, nil
	case ActionAccept:
		target.Accept(protocol.CommandKind(step.Command))
		return nil, nil
	case ActionShutdown:
		target.Shutdown(step.Detail)
		return nil, nil
	case ActionCheck:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

// thread picks the step's thread, falling back to the first thread of the
// target.
func (r *Runner) thread(target *sim.Target, step Step) execctx.ThreadContext {
	if step.Thread != nil {
		return target.Thread(*step.Thread)
	}
	if ids := target.Threads(); len(ids) > 0 {
		return target.Thread(ids[0])
	}
	return target.Thread(execctx.SentinelThreadID)
}

func stopFor(step Step) sim.Stop {
	s := sim.Stop{Cause: protocol.StopCause(step.Cause), Detail: step.Detail}
	if step.Thread != nil {
		s.Thread = *step.Thread
	}
	return s
}

func (r *Runner) env(ctx context.Context, svc *runcontrol.Service, target *sim.Target,
	res StepResult, threads []int) map[string]any {
	container := target.Container()
	state := svc.State(ctx)

	var trigger any
	if t, ok := execctx.ThreadOf(state.LastTrigger); ok {
		trigger = t.ThreadID
	}
	events := res.Events
	if events == nil {
		events = []string{}
	}
	commands := res.Commands
	if commands == nil {
		commands = []string{}
	}

	return map[string]any{
		"state":          string(state.Phase()),
		"suspended":      svc.IsSuspended(ctx, container),
		"stepping":       svc.IsStepping(ctx, container),
		"terminated":     state.Terminated,
		"pending":        state.ResumePending,
		"reason":         string(state.LastReason),
		"detail":         state.LastDetail,
		"trigger":        trigger,
		"error":          string(rcerrors.KindOf(res.Err)),
		"threads":        threads,
		"target_threads": target.Threads(),
		"events":         events,
		"commands":       commands,
		"can_resume":     svc.CanResume(ctx, container),
		"can_suspend":    svc.CanSuspend(ctx, container),
	}
}
