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

// UserVisibleError carries a message and suggestion for people running
// runctl. The CLI prints the suggestion under the error.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string

	// Suggestion is empty when there is nothing to suggest.
	Suggestion() string
}

// ErrorClassifier labels an error for span attributes and metrics.
// ErrorType is one of the Kind values for run-control errors.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}

var (
	_ ErrorClassifier  = (*ControlError)(nil)
	_ UserVisibleError = (*ValidationError)(nil)
)
