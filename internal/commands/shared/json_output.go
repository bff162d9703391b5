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
	"encoding/json"
	"errors"
	"io"

	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// JSONVersion is the version of the JSON output envelope.
const JSONVersion = "1.0"

// JSONResponse is the base envelope for all JSON output.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// NewJSONResponse creates an envelope for command.
func NewJSONResponse(command string, success bool) JSONResponse {
	return JSONResponse{Version: JSONVersion, Command: command, Success: success}
}

// EmitJSON writes v as indented JSON.
func EmitJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// ErrorDetail is the error body of a failed command's envelope.
type ErrorDetail struct {
	ExitCode   int    `json:"exit_code"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ErrorResponse is emitted instead of a command's normal output when it
// fails and --json is set.
type ErrorResponse struct {
	JSONResponse
	Error ErrorDetail `json:"error"`
}

// NewErrorResponse builds the failure envelope for err.
func NewErrorResponse(command string, err error) ErrorResponse {
	detail := ErrorDetail{ExitCode: ExitCode(err), Message: err.Error()}

	var classified rcerrors.ErrorClassifier
	if errors.As(err, &classified) {
		detail.Kind = classified.ErrorType()
	}
	var userErr rcerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		detail.Suggestion = userErr.Suggestion()
	}
	return ErrorResponse{
		JSONResponse: NewJSONResponse(command, false),
		Error:        detail,
	}
}
