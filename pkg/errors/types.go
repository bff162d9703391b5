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

package errors

import (
	"fmt"
)

// Kind classifies why a run-control request was refused or failed.
type Kind string

const (
	// KindInvalidState means the operation is not legal in the current run
	// state, for example resuming a target that is already running.
	KindInvalidState Kind = "invalid_state"

	// KindNotSupported means the operation is not meaningful for the given
	// context kind, or a collaborator it needs is unavailable.
	KindNotSupported Kind = "not_supported"

	// KindInvalidHandle means the context is not a recognized execution
	// context for the query.
	KindInvalidHandle Kind = "invalid_handle"

	// KindInternal marks unreachable cases and misuse of the dispatch loop.
	KindInternal Kind = "internal"

	// KindRequestFailed means the command transport or the target rejected
	// a command. Cause carries the transport error.
	KindRequestFailed Kind = "request_failed"
)

// ControlError is returned by every run-control operation that fails.
type ControlError struct {
	// Kind is the failure category.
	Kind Kind

	// Op names the operation, e.g. "resume" or "step".
	Op string

	// Context is the printable form of the execution context involved.
	Context string

	// Detail is the human-readable description.
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ControlError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Detail)
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s (context %s)", e.Op, e.Detail, e.Context)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ControlError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ControlError) ErrorType() string {
	return string(e.Kind)
}

// IsRetryable implements ErrorClassifier. The engine never retries control
// commands on its own, and callers should re-check state before trying again.
func (e *ControlError) IsRetryable() bool {
	return false
}

// NewControlError creates a ControlError of the given kind.
func NewControlError(kind Kind, op, context, detail string) *ControlError {
	return &ControlError{
		Kind:    kind,
		Op:      op,
		Context: context,
		Detail:  detail,
	}
}

// ValidationError represents user input validation failures.
// Use this for malformed scenario files or command-line arguments.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Hint provides actionable guidance for fixing the error
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// IsUserVisible implements UserVisibleError.
func (e *ValidationError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *ValidationError) UserMessage() string {
	return e.Message
}

// Suggestion implements UserVisibleError.
func (e *ValidationError) Suggestion() string {
	return e.Hint
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "scenario", "thread")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "session.completion_delay")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
