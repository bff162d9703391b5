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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

func TestLoad_Testdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := Load(path)
			require.NoError(t, err)
			assert.NotEmpty(t, sc.Name)
			assert.NotEmpty(t, sc.Steps)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	var notFound *rcerrors.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "scenario", notFound.Resource)
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(`
name: demo
target:
  threads: [4, 5]
  completion_delay: 0
steps:
  - action: step
    thread: 5
    kind: instruction-over
    expect: suspended
`))
	require.NoError(t, err)

	assert.Equal(t, "demo", sc.Name)
	assert.Equal(t, []int{4, 5}, sc.Target.Threads)
	require.NotNil(t, sc.Target.CompletionDelay)
	assert.Equal(t, 0, *sc.Target.CompletionDelay)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, ActionStep, sc.Steps[0].Action)
	assert.Equal(t, 5, *sc.Steps[0].Thread)
	assert.Equal(t, "instruction-over", sc.Steps[0].Kind)
	assert.Equal(t, "step", sc.Steps[0].Label())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "missing name",
			doc:   "steps: [{action: resume}]",
			field: "name",
		},
		{
			name:  "no steps",
			doc:   "name: x",
			field: "steps",
		},
		{
			name:  "unknown action",
			doc:   "name: x\nsteps: [{action: teleport}]",
			field: "steps[0].action",
		},
		{
			name:  "unknown step kind",
			doc:   "name: x\nsteps: [{action: step, kind: sideways}]",
			field: "steps[0].kind",
		},
		{
			name:  "run-to without location",
			doc:   "name: x\nsteps: [{action: run-to}]",
			field: "steps[0].location",
		},
		{
			name:  "hit without thread",
			doc:   "name: x\nsteps: [{action: resume}, {action: hit}]",
			field: "steps[1].thread",
		},
		{
			name:  "stop without cause",
			doc:   "name: x\nsteps: [{action: queue-stop}]",
			field: "steps[0].cause",
		},
		{
			name:  "unknown command",
			doc:   "name: x\nsteps: [{action: reject, command: detach}]",
			field: "steps[0].command",
		},
		{
			name:  "empty check",
			doc:   "name: x\nsteps: [{action: check}]",
			field: "steps[0].expect",
		},
		{
			name:  "unknown error kind",
			doc:   "name: x\nsteps: [{action: resume, expect_error: oops}]",
			field: "steps[0].expect_error",
		},
		{
			name:  "bad expression",
			doc:   "name: x\nsteps: [{action: resume, expect: 'suspended &&'}]",
			field: "steps[0].expect",
		},
		{
			name:  "negative delay",
			doc:   "name: x\ntarget: {completion_delay: -1}\nsteps: [{action: resume}]",
			field: "target.completion_delay",
		},
		{
			name: "unknown field",
			doc:  "name: x\nsteps: [{action: resume, thred: 1}]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var verr *rcerrors.ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
