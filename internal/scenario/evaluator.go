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
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates step expectations. Compiled programs are cached by
// expression text.
//
// Expressions see these variables:
//
//	state           "suspended", "running", "stepping" or "terminated"
//	suspended       session is suspended
//	stepping        a step is running
//	terminated      the debugger connection is gone
//	pending         a resume was issued but not yet confirmed
//	reason          reason of the last state change
//	detail          detail of the last state change, such as a signal name
//	trigger         thread id that caused the last change, or nil
//	error           error kind of the step's action, or ""
//	threads         thread ids returned by a threads step
//	target_threads  thread ids the simulated target currently has
//	events          domain event kinds published during the step
//	commands        debugger operations sent during the step
//	can_resume      CanResume on the container
//	can_suspend     CanSuspend on the container
//
// and the helper occurrences(list, value), which counts value in events or
// commands.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Result is the outcome of one expectation.
type Result struct {
	Passed     bool
	Expression string

	// Error is set if the expression failed to compile or run.
	Error error
}

// Evaluate evaluates expression against env. An empty expression passes.
func (e *Evaluator) Evaluate(expression string, env map[string]any) Result {
	if expression == "" {
		return Result{Passed: true}
	}

	program, err := e.compile(expression)
	if err != nil {
		return Result{Expression: expression, Error: err}
	}

	evalEnv := make(map[string]any, len(env)+len(helpers()))
	for k, v := range env {
		evalEnv[k] = v
	}
	for name, fn := range helpers() {
		evalEnv[name] = fn
	}

	out, err := expr.Run(program, evalEnv)
	if err != nil {
		return Result{Expression: expression, Error: fmt.Errorf("expression evaluation failed: %w", err)}
	}
	passed, ok := out.(bool)
	if !ok {
		return Result{
			Expression: expression,
			Error:      fmt.Errorf("expression must return boolean, got %T (%v)", out, out),
		}
	}
	return Result{Passed: passed, Expression: expression}
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	env := make(map[string]any)
	for name, fn := range helpers() {
		env[name] = fn
	}
	prog, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

// CacheSize returns the number of cached expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func helpers() map[string]any {
	return map[string]any{
		"occurrences": func(list []string, value string) int {
			n := 0
			for _, v := range list {
				if v == value {
					n++
				}
			}
			return n
		},
	}
}
