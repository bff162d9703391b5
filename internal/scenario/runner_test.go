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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/runcontrol/internal/dispatch"
	"github.com/tombee/runcontrol/internal/runcontrol"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunner_Testdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)

	for _, path := range files {
		for _, delay := range []int{0, 1, dispatch.DefaultCompletionDelay} {
			sc, err := Load(path)
			require.NoError(t, err)

			runner := NewRunner(Options{CompletionDelay: delay})
			report, err := runner.Run(testContext(t), sc)
			require.NoError(t, err)

			failed, ok := report.Failed()
			assert.False(t, ok, "%s (delay %d): step %d %q: %s",
				filepath.Base(path), delay, failed.Index, failed.Label, failed.Failure)
			assert.True(t, report.Passed())
			assert.Len(t, report.Steps, len(sc.Steps))
		}
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	sc, err := Parse([]byte(`
name: failing
steps:
  - action: resume
  - name: wrong reason
    action: check
    expect: "reason == 'breakpoint'"
  - action: suspend
`))
	require.NoError(t, err)

	report, err := NewRunner(Options{SessionID: "s1"}).Run(testContext(t), sc)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Equal(t, "s1", report.SessionID)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Steps, 2)

	failed, ok := report.Failed()
	require.True(t, ok)
	assert.Equal(t, "wrong reason", failed.Label)
	assert.Contains(t, failed.Failure, "expectation not met")
	assert.False(t, report.Final.Suspended)
}

func TestRunner_ErrorExpectations(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		failure string
	}{
		{
			name: "unexpected error",
			doc: `
name: x
steps:
  - action: resume
  - action: resume
`,
			failure: "action failed",
		},
		{
			name: "missing error",
			doc: `
name: x
steps:
  - action: resume
    expect_error: invalid_state
`,
			failure: "expected invalid_state error, got no error",
		},
		{
			name: "target script error",
			doc: `
name: x
steps:
  - action: hit
    thread: 1
`,
			failure: "target is not running",
		},
		{
			name: "invalid handle",
			doc: `
name: x
steps:
  - action: threads
    thread: 1
    expect_error: invalid_state
`,
			failure: "expected invalid_state error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			report, err := NewRunner(Options{}).Run(testContext(t), sc)
			require.NoError(t, err)

			failed, ok := report.Failed()
			require.True(t, ok)
			assert.Contains(t, failed.Failure, tt.failure)
		})
	}
}

type observer struct {
	mu       sync.Mutex
	sessions []string
	kinds    []runcontrol.EventKind
}

func (o *observer) Listener(sessionID string) func(context.Context, runcontrol.Event) {
	o.mu.Lock()
	o.sessions = append(o.sessions, sessionID)
	o.mu.Unlock()
	return func(_ context.Context, ev runcontrol.Event) {
		o.mu.Lock()
		o.kinds = append(o.kinds, ev.Kind)
		o.mu.Unlock()
	}
}

func TestRunner_ObserversAndSpans(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "rejection.yaml"))
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	obs := &observer{}

	report, err := NewRunner(Options{
		SessionID:      "replay-1",
		TracerProvider: tp,
		Observers:      []Observer{obs},
	}).Run(testContext(t), sc)
	require.NoError(t, err)
	require.True(t, report.Passed())

	assert.Equal(t, []string{"replay-1"}, obs.sessions)
	assert.Equal(t, []runcontrol.EventKind{runcontrol.EventResumed, runcontrol.EventSuspended}, obs.kinds)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	root, ok := byName["scenario rejected-resume"]
	require.True(t, ok)
	step, ok := byName["step suspend"]
	require.True(t, ok)
	op, ok := byName["runcontrol.suspend"]
	require.True(t, ok)

	assert.Equal(t, root.SpanContext.SpanID(), step.Parent.SpanID())
	assert.Equal(t, step.SpanContext.SpanID(), op.Parent.SpanID())
	assert.Equal(t, root.SpanContext.TraceID(), op.SpanContext.TraceID())
}

func TestRunner_DisableFrames(t *testing.T) {
	sc, err := Parse([]byte(`
name: no-frames
steps:
  - action: step
    kind: return
    expect_error: not_supported
    expect: "suspended && len(commands) == 0"
`))
	require.NoError(t, err)

	report, err := NewRunner(Options{DisableFrames: true}).Run(testContext(t), sc)
	require.NoError(t, err)
	assert.True(t, report.Passed())
}
