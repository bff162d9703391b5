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

// Package errors defines the error types shared across runcontrol.
//
// Run-control operations report failures as *ControlError values whose Kind
// tells callers whether the request was illegal in the current state, not
// meaningful for the context, addressed to an unknown context, or rejected
// by the target. Use IsKind to test for a category:
//
//	if errors.IsKind(err, errors.KindInvalidState) {
//	    // target is running or terminated
//	}
package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(message string) error {
	return errors.New(message)
}

// IsKind reports whether err's chain contains a *ControlError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ControlError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// KindOf returns the kind of the first *ControlError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var ce *ControlError
	if !errors.As(err, &ce) {
		return ""
	}
	return ce.Kind
}
