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


package shared

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "scenario failed", err: NewScenarioFailedError("failed"), want: ExitScenarioFailed},
		{name: "invalid scenario", err: NewInvalidScenarioError("bad", errors.New("x")), want: ExitInvalidScenario},
		{name: "config", err: NewConfigError("bad", nil), want: ExitConfigError},
		{name: "wrapped", err: fmt.Errorf("replay: %w", NewConfigError("bad", nil)), want: ExitConfigError},
		{name: "plain", err: errors.New("boom"), want: ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := NewInvalidScenarioError("failed to load scenario", errors.New("no such file"))
	if err.Error() != "failed to load scenario: no such file" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if NewScenarioFailedError("2 steps failed").Error() != "2 steps failed" {
		t.Error("expected message without cause")
	}
}

func TestPrintError_Suggestion(t *testing.T) {
	verr := &rcerrors.ValidationError{
		Field:   "steps[0].kind",
		Message: "unknown step kind",
		Hint:    "use one of [into over]",
	}

	var buf bytes.Buffer
	PrintError(&buf, NewInvalidScenarioError("invalid scenario", verr))

	out := buf.String()
	if !strings.Contains(out, "unknown step kind") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "Suggestion: use one of [into over]") {
		t.Errorf("expected suggestion in output, got %q", out)
	}

	buf.Reset()
	PrintError(&buf, errors.New("plain"))
	if strings.Contains(buf.String(), "Suggestion") {
		t.Errorf("unexpected suggestion in %q", buf.String())
	}
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := EmitJSON(&buf, NewJSONResponse("replay", true)); err != nil {
		t.Fatalf("EmitJSON failed: %v", err)
	}
	want := "{\n  \"@version\": \"1.0\",\n  \"command\": \"replay\",\n  \"success\": true\n}\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       int
		kind       string
		suggestion string
	}{
		{
			name:       "invalid scenario",
			err:        NewInvalidScenarioError("invalid scenario", &rcerrors.ValidationError{Field: "steps[0]", Message: "unknown action", Hint: "use resume"}),
			code:       ExitInvalidScenario,
			suggestion: "use resume",
		},
		{
			name: "control error",
			err:  rcerrors.NewControlError(rcerrors.KindInvalidState, "resume", "", "not suspended"),
			code: ExitInternal,
			kind: "invalid_state",
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			code: ExitInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewErrorResponse("replay", tt.err)
			if resp.Success {
				t.Error("failure envelope reports success")
			}
			if resp.Command != "replay" || resp.Version != JSONVersion {
				t.Errorf("unexpected envelope: %+v", resp.JSONResponse)
			}
			if resp.Error.ExitCode != tt.code {
				t.Errorf("exit code = %d, want %d", resp.Error.ExitCode, tt.code)
			}
			if resp.Error.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", resp.Error.Kind, tt.kind)
			}
			if resp.Error.Suggestion != tt.suggestion {
				t.Errorf("suggestion = %q, want %q", resp.Error.Suggestion, tt.suggestion)
			}
			if resp.Error.Message != tt.err.Error() {
				t.Errorf("message = %q, want %q", resp.Error.Message, tt.err.Error())
			}
		})
	}
}

func TestSetGlobalsForTest(t *testing.T) {
	restore := SetGlobalsForTest(Globals{JSON: true, ConfigPath: "/tmp/x.yaml"})
	if !Global().JSON || Global().ConfigPath != "/tmp/x.yaml" {
		t.Errorf("globals not applied: %+v", Global())
	}
	restore()
	if Global().JSON {
		t.Error("globals not restored")
	}
}
