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

package dispatch

import (
	"context"
	"log/slog"

	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
)

// DefaultCompletionDelay is the number of extra turns a completion waits.
// A raw event needs two turns to be reconciled (delivery, then the
// re-published domain event), a completion one; two extra turns keep one
// turn of margin.
const DefaultCompletionDelay = 2

// BufferedTransport delays command completions so that events the
// debugger raised before a completion are reconciled first.
type BufferedTransport struct {
	next   protocol.Transport
	exec   *Executor
	delay  int
	logger *slog.Logger
}

// NewBufferedTransport wraps next. Completions run on exec after delay
// extra turns; a negative delay is treated as zero.
func NewBufferedTransport(next protocol.Transport, exec *Executor, delay int, logger *slog.Logger) *BufferedTransport {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BufferedTransport{next: next, exec: exec, delay: delay, logger: logger}
}

// Delay returns the configured number of extra turns.
func (t *BufferedTransport) Delay() int {
	return t.delay
}

// QueueCommand implements protocol.Transport.
func (t *BufferedTransport) QueueCommand(cmd protocol.Command, done protocol.CompletionFunc) {
	t.next.QueueCommand(cmd, func(result protocol.Result, err error) {
		deliver := func(context.Context) {
			done(result, err)
		}
		if !t.exec.Submit(t.deferred(t.delay, cmd, deliver)) {
			t.logger.Warn("dropping completion, executor closed", log.Command(string(cmd.Kind)))
		}
	})
}

func (t *BufferedTransport) deferred(remaining int, cmd protocol.Command, fn Task) Task {
	return func(ctx context.Context) {
		if remaining <= 0 {
			fn(ctx)
			return
		}
		log.Trace(t.logger, "delaying completion",
			log.Command(string(cmd.Kind)),
			slog.Int("remaining_turns", remaining))
		t.exec.Submit(t.deferred(remaining-1, cmd, fn))
	}
}
