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

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestExecutor_RunsInOrder(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, exec.Submit(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	require.NoError(t, exec.Drain(testContext(t)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.GreaterOrEqual(t, exec.Turns(), uint64(50))
}

func TestExecutor_CallInlineOnExecutor(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()
	ctx := testContext(t)

	assert.False(t, exec.OnExecutor(ctx))

	var nested bool
	err := exec.Call(ctx, func(taskCtx context.Context) {
		assert.True(t, exec.OnExecutor(taskCtx))
		// A nested Call from inside a task must not deadlock.
		require.NoError(t, exec.Call(taskCtx, func(context.Context) {
			nested = true
		}))
	})
	require.NoError(t, err)
	assert.True(t, nested)

	other := NewExecutor()
	defer other.Close()
	require.NoError(t, exec.Call(ctx, func(taskCtx context.Context) {
		assert.False(t, other.OnExecutor(taskCtx))
	}))
}

func TestExecutor_DrainWaitsForResubmits(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	var mu sync.Mutex
	done := false
	var chain func(n int) Task
	chain = func(n int) Task {
		return func(context.Context) {
			if n == 0 {
				mu.Lock()
				done = true
				mu.Unlock()
				return
			}
			exec.Submit(chain(n - 1))
		}
	}
	exec.Submit(chain(10))

	require.NoError(t, exec.Drain(testContext(t)))
	mu.Lock()
	assert.True(t, done)
	mu.Unlock()
}

func TestExecutor_RecoversPanics(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	exec.Submit(func(context.Context) { panic("boom") })

	ran := false
	require.NoError(t, exec.Call(testContext(t), func(context.Context) { ran = true }))
	assert.True(t, ran)
}

func TestExecutor_Close(t *testing.T) {
	exec := NewExecutor()
	exec.Close()
	exec.Close()

	select {
	case <-exec.Done():
	case <-time.After(time.Second):
		t.Fatal("executor goroutine did not exit")
	}

	assert.False(t, exec.Submit(func(context.Context) {}))
	assert.ErrorIs(t, exec.Call(context.Background(), func(context.Context) {}), ErrClosed)
	assert.ErrorIs(t, exec.Drain(context.Background()), ErrClosed)
}

func TestExecutor_CloseReleasesWaiters(t *testing.T) {
	exec := NewExecutor()

	started := make(chan struct{})
	release := make(chan struct{})
	exec.Submit(func(context.Context) {
		close(started)
		<-release
	})
	<-started

	ran := make(chan struct{}, 1)
	callErr := make(chan error, 1)
	drainErr := make(chan error, 1)
	go func() { callErr <- exec.Call(context.Background(), func(context.Context) { ran <- struct{}{} }) }()
	go func() { drainErr <- exec.Drain(context.Background()) }()

	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		return len(exec.queue) == 2
	}, time.Second, time.Millisecond)

	exec.Close()
	close(release)

	for name, errs := range map[string]chan error{"Call": callErr, "Drain": drainErr} {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s still waiting after Close", name)
		}
	}
	assert.Empty(t, ran, "queued task must not run after Close")
}

func TestExecutor_CallHonoursCancellation(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()

	release := make(chan struct{})
	exec.Submit(func(context.Context) { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := exec.Call(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
