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
	"errors"
	"fmt"
	"io"
	"os"

	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitScenarioFailed  = 1
	ExitInvalidScenario = 2
	ExitConfigError     = 3
	ExitNotFound        = 4
	ExitInternal        = 70 // EX_SOFTWARE from sysexits.h
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewScenarioFailedError reports a replay whose expectations did not hold.
func NewScenarioFailedError(msg string) *ExitError {
	return &ExitError{Code: ExitScenarioFailed, Message: msg}
}

// NewInvalidScenarioError reports a scenario that could not be loaded.
func NewInvalidScenarioError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidScenario, Message: msg, Cause: cause}
}

// NewConfigError reports a configuration problem.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource, id string) *ExitError {
	return &ExitError{
		Code:    ExitNotFound,
		Message: "lookup failed",
		Cause:   &rcerrors.NotFoundError{Resource: resource, ID: id},
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitInternal
}

// PrintError writes err and any suggestion it carries to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, RenderError(err.Error()))

	var userErr rcerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
		}
	}
}

// HandleExitError prints err to stderr and exits with its code. With
// --json set the error is written as an ErrorResponse. It does nothing for
// a nil error.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	if Global().JSON {
		if EmitJSON(os.Stderr, NewErrorResponse("runctl", err)) != nil {
			PrintError(os.Stderr, err)
		}
	} else {
		PrintError(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}
