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


// Package jq filters command output with jq expressions.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single query run.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the largest JSON input a query accepts (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Query is a compiled jq expression.
type Query struct {
	expression   string
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int
}

// Compile parses and compiles expression.
func Compile(expression string) (*Query, error) {
	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return &Query{
		expression:   expression,
		code:         code,
		timeout:      DefaultTimeout,
		maxInputSize: DefaultMaxInputSize,
	}, nil
}

// String returns the source expression.
func (q *Query) String() string {
	return q.expression
}

// WithTimeout returns a copy of q that stops after d.
func (q *Query) WithTimeout(d time.Duration) *Query {
	c := *q
	c.timeout = d
	return &c
}

// Run converts v to plain JSON values and returns every value the query
// emits, in order.
func (q *Query) Run(ctx context.Context, v any) ([]any, error) {
	input, err := q.normalize(v)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	type outcome struct {
		results []any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		var results []any
		iter := q.code.RunWithContext(runCtx, input)
		for {
			out, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := out.(error); isErr {
				done <- outcome{err: err}
				return
			}
			results = append(results, out)
			if runCtx.Err() != nil {
				return
			}
		}
		done <- outcome{results: results}
	}()

	select {
	case o := <-done:
		return o.results, o.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("jq execution timeout after %v", q.timeout)
	}
}

// normalize round-trips v through JSON so structs and typed slices become
// the map and slice values gojq operates on.
func (q *Query) normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	if len(data) > q.maxInputSize {
		return nil, fmt.Errorf("input size (%d bytes) exceeds maximum (%d bytes)", len(data), q.maxInputSize)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return out, nil
}
