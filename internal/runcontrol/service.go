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
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/runcontrol/internal/cache"
	"github.com/tombee/runcontrol/internal/dispatch"
	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// Operation names used in errors, spans and metrics.
const (
	opResume               = "resume"
	opSuspend              = "suspend"
	opStep                 = "step"
	opRunToLocation        = "run_to_location"
	opGetExecutionContexts = "get_execution_contexts"
	opGetExecutionData     = "get_execution_data"
)

// Service is the run-control engine for one debug session.
type Service struct {
	id        string
	logger    *slog.Logger
	exec      *dispatch.Executor
	bus       *dispatch.Bus
	transport *dispatch.BufferedTransport
	cache     *cache.Cache
	telemetry *telemetry

	// The fields below belong to the executor.
	state   RunState
	frames  protocol.FrameProvider
	nextSeq uint64
	applied uint64

	unsubscribe []func()
	closeOnce   sync.Once
}

type options struct {
	logger         *slog.Logger
	frames         protocol.FrameProvider
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	delay          int
	sessionID      string
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFrameProvider sets the stack service used by step-return.
func WithFrameProvider(frames protocol.FrameProvider) Option {
	return func(o *options) { o.frames = frames }
}

// WithTracerProvider sets where operation spans go. The default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets where operation latencies go. The default is the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithCompletionDelay sets how many extra dispatch turns every command
// completion waits before it is applied. It must cover the turns an event
// needs to be translated and reconciled; zero disables the delay.
func WithCompletionDelay(turns int) Option {
	return func(o *options) { o.delay = turns }
}

// WithSessionID sets the session id. The default is a random UUID.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// New creates a service that sends commands through transport. The
// session starts suspended. Call Close to stop it.
func New(transport protocol.Transport, opts ...Option) *Service {
	o := options{
		logger:         log.Discard(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		delay:          dispatch.DefaultCompletionDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}

	logger := log.WithSession(log.WithComponent(o.logger, "runcontrol"), o.sessionID)
	exec := dispatch.NewExecutor(dispatch.WithLogger(logger))

	s := &Service{
		id:        o.sessionID,
		logger:    logger,
		exec:      exec,
		bus:       dispatch.NewBus(exec),
		transport: dispatch.NewBufferedTransport(transport, exec, o.delay, logger),
		telemetry: newTelemetry(o.sessionID, o.tracerProvider, o.meterProvider),
		state:     initialState(),
		frames:    o.frames,
	}
	s.cache = cache.New(cache.Config{
		Transport: protocol.TransportFunc(s.send),
		Logger:    logger,
	})
	s.unsubscribe = []func(){
		dispatch.Subscribe(s.bus, dispatch.PriorityInternal, s.onProtocolEvent),
		dispatch.Subscribe(s.bus, dispatch.PriorityInternal, s.onEvent),
	}

	sessionsActive.Inc()
	logger.Debug("session started", slog.Int("completion_delay", s.transport.Delay()))
	return s
}

// ID returns the session id.
func (s *Service) ID() string {
	return s.id
}

// Sink returns where the transport posts decoded protocol events.
func (s *Service) Sink() protocol.EventSink {
	return s.bus
}

// Subscribe registers a listener for domain events. Listeners run on the
// executor after the service has applied the event to its own state, in
// registration order. Events that arrive after the session terminated are
// not delivered.
func (s *Service) Subscribe(listener func(ctx context.Context, ev Event)) (unsubscribe func()) {
	return dispatch.Subscribe(s.bus, dispatch.PriorityListener, func(ctx context.Context, ev Event) {
		if ev.seq != s.applied {
			return
		}
		listener(ctx, ev)
	})
}

// Drain waits until every queued event and completion has been handled.
func (s *Service) Drain(ctx context.Context) error {
	return s.exec.Drain(ctx)
}

// Close stops the executor. Work still queued is dropped. Calls waiting on
// a command that has not completed, and later calls, fail with an
// invalid-state error, except pure reads, which return the final state. Close must not be called from a listener.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		for _, unsubscribe := range s.unsubscribe {
			unsubscribe()
		}
		s.exec.Close()
		<-s.exec.Done()
		sessionsActive.Dec()
		s.logger.Debug("session closed")
	})
}

// send forwards cmd to the delayed transport and counts the outcome.
func (s *Service) send(cmd protocol.Command, done protocol.CompletionFunc) {
	log.Trace(s.logger, "sending command", log.Command(cmd.Kind.Operation()), log.Context(cmd.Context))
	s.transport.QueueCommand(cmd, func(result protocol.Result, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		recordCommand(string(cmd.Kind), status)
		s.logger.Debug("command completed",
			log.Command(cmd.Kind.Operation()),
			log.Context(cmd.Context),
			slog.String("status", status))
		done(result, err)
	})
}

// run executes fn on the executor and waits until it reports. Called from
// a task, fn runs inline and run returns as soon as fn does: nil once fn
// has issued its command, or the error fn reported synchronously.
func (s *Service) run(ctx context.Context, op string, fn func(done func(error))) error {
	if s.exec.OnExecutor(ctx) {
		var result error
		fn(func(err error) { result = err })
		return result
	}

	results := make(chan error, 1)
	if err := s.exec.Call(ctx, func(context.Context) {
		fn(func(err error) { results <- err })
	}); err != nil {
		return s.callError(op, err)
	}

	select {
	case err := <-results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.exec.Done():
		// A completion still in flight is dropped with the executor.
		select {
		case err := <-results:
			return err
		default:
			return s.callError(op, dispatch.ErrClosed)
		}
	}
}

// query is run for operations that produce a value. Called from a task,
// an answer that is not available synchronously is an internal error.
func query[T any](ctx context.Context, s *Service, op string, fn func(done func(T, error))) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	var zero T

	if s.exec.OnExecutor(ctx) {
		var out *outcome
		fn(func(value T, err error) { out = &outcome{value: value, err: err} })
		if out == nil {
			return zero, rcerrors.NewControlError(rcerrors.KindInternal, op, "",
				"blocking call from dispatch goroutine")
		}
		return out.value, out.err
	}

	results := make(chan outcome, 1)
	if err := s.exec.Call(ctx, func(context.Context) {
		fn(func(value T, err error) { results <- outcome{value: value, err: err} })
	}); err != nil {
		return zero, s.callError(op, err)
	}

	select {
	case out := <-results:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.exec.Done():
		select {
		case out := <-results:
			return out.value, out.err
		default:
			return zero, s.callError(op, dispatch.ErrClosed)
		}
	}
}

// read evaluates fn on the executor. After Close it evaluates fn against
// the final state instead.
func read[T any](ctx context.Context, s *Service, fn func() T) T {
	values := make(chan T, 1)
	err := s.exec.Call(ctx, func(context.Context) { values <- fn() })
	switch {
	case err == nil:
		return <-values
	case errors.Is(err, dispatch.ErrClosed):
		<-s.exec.Done()
		return fn()
	default:
		var zero T
		return zero
	}
}

func (s *Service) callError(op string, err error) error {
	if errors.Is(err, dispatch.ErrClosed) {
		return rcerrors.NewControlError(rcerrors.KindInvalidState, op, "", "session closed")
	}
	return err
}

func contextLabel(c execctx.Context) string {
	if c == nil {
		return ""
	}
	return c.String()
}

func controlError(kind rcerrors.Kind, op string, c execctx.Context, detail string) error {
	return rcerrors.NewControlError(kind, op, contextLabel(c), detail)
}
