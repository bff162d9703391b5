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

	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
)

// onProtocolEvent translates a raw event and publishes the result in a
// later turn.
func (s *Service) onProtocolEvent(_ context.Context, raw protocol.Event) {
	if s.state.Terminated {
		log.Trace(s.logger, "dropping event after termination", log.Event(string(raw.Kind)))
		return
	}

	ev, ok := translate(raw)
	if !ok {
		s.logger.Warn("ignoring event without execution context", log.Event(raw.String()))
		return
	}

	s.nextSeq++
	ev.seq = s.nextSeq
	s.bus.Post(ev)
}

// onEvent reconciles the session state with a domain event. It runs
// before any listener sees the event.
func (s *Service) onEvent(_ context.Context, ev Event) {
	if s.state.Terminated {
		log.Trace(s.logger, "dropping event after termination", log.Event(string(ev.Kind)))
		return
	}

	switch ev.Kind {
	case EventResumed:
		s.state.Suspended = false
		s.state.ResumePending = false
		s.state.Stepping = ev.Reason == ReasonStep
		s.recordChange(ev)
		s.cache.SetAvailability(ev.Context, false)
		s.cache.Invalidate(nil)

	case EventSuspended:
		s.cache.SetAvailability(ev.Context, true)
		s.cache.Invalidate(nil)
		s.recordChange(ev)
		s.state.Suspended = true
		s.state.Stepping = false

	case EventThreadExited:
		if ev.Context != nil {
			s.cache.Invalidate(ev.Context)
		}

	case EventTerminated:
		s.state.Terminated = true
		s.cache.Reset()
		sessionsTerminated.Inc()
	}

	s.applied = ev.seq
	recordEvent(ev)
	s.logger.Debug("event reconciled",
		log.Event(string(ev.Kind)),
		log.Context(ev.Context),
		log.Reason(string(ev.Reason)),
		slog.String("phase", string(s.state.Phase())))
}

// recordChange remembers why and where the state last changed. A
// container-wide change is attributed to the thread that caused it, if
// the debugger named one.
func (s *Service) recordChange(ev Event) {
	s.state.LastReason = ev.Reason
	s.state.LastDetail = ev.Detail
	if ev.ContainerScoped() {
		s.state.LastTrigger = ev.Triggering
	} else {
		s.state.LastTrigger = ev.Context
	}
}
