// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Run(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	var counter int64
	functions := []func() error{
		func() error {
			atomic.AddInt64(&counter, 1)
			time.Sleep(10 * time.Millisecond) // Simulate work
			return nil
		},
		func() error {
			atomic.AddInt64(&counter, 2)
			time.Sleep(10 * time.Millisecond)
			return nil
		},
		func() error {
			atomic.AddInt64(&counter, 3)
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	}

	err := pool.Run(ctx, functions...)
	require.NoError(t, err)
	assert.Equal(t, int64(6), atomic.LoadInt64(&counter))
}

func TestWorkerPool_Run_WithError(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	// Track which functions executed
	var executedFunc1, executedFunc2, executedFunc3 bool
	var mu sync.Mutex

	expectedError := errors.New("job failed")
	functions := []func() error{
		func() error {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			executedFunc1 = true
			mu.Unlock()
			return nil
		},
		func() error {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			executedFunc2 = true
			mu.Unlock()
			return expectedError
		},
		func() error {
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			executedFunc3 = true
			mu.Unlock()
			return nil
		},
	}

	err := pool.Run(ctx, functions...)

	// Verify error was returned
	require.Error(t, err)
	assert.Equal(t, expectedError, err)

	// Verify certain functions were executed while the remaining ones were not
	assert.True(t, executedFunc1, "Function 1 should have executed")
	assert.True(t, executedFunc2, "Function 2 should have executed")
	assert.False(t, executedFunc3, "Function 3 should not have executed")
}

func TestWorkerPool_Run_EmptyFunctions(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	err := pool.Run(ctx)
	require.NoError(t, err)
}

func TestWorkerPool_RunEach_ExecutesAllFunctions(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	var executed int64
	errFirst := errors.New("first failed")
	errThird := errors.New("third failed")

	functions := []func() error{
		func() error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&executed, 1)
			return errFirst
		},
		func() error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&executed, 1)
			return nil
		},
		func() error {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&executed, 1)
			return errThird
		},
	}

	errs := pool.RunEach(ctx, functions...)

	assert.Equal(t, int64(3), atomic.LoadInt64(&executed))
	require.Len(t, errs, 3)
	assert.Equal(t, errFirst, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, errThird, errs[2])
}

func TestWorkerPool_RunEach_EmptyFunctions(t *testing.T) {
	pool := NewWorkerPool(2)
	assert.Nil(t, pool.RunEach(context.Background()))
}

func TestWorkerPool_RunEach_AllSucceed(t *testing.T) {
	pool := NewWorkerPool(3)

	var counter int64
	functions := make([]func() error, 0, 5)
	for range 5 {
		functions = append(functions, func() error {
			atomic.AddInt64(&counter, 1)
			return nil
		})
	}

	errs := pool.RunEach(context.Background(), functions...)

	assert.Equal(t, int64(5), atomic.LoadInt64(&counter))
	assert.Nil(t, errs)
}

func TestWorkerPool_Run_WithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(2)
	cancel()

	err := pool.Run(ctx, func() error { return nil })
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}

func TestWorkerPool_RunEach_WithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(2)
	cancel()

	var called bool
	errs := pool.RunEach(ctx, func() error {
		called = true
		return nil
	})

	require.Len(t, errs, 1)
	assert.Equal(t, context.Canceled, errs[0])
	assert.False(t, called)
}

func TestMap(t *testing.T) {
	pool := NewWorkerPool(2)

	t.Run("outputs keep input order", func(t *testing.T) {
		out, err := Map(context.Background(), pool, []int{30, 10, 20}, func(_ context.Context, ms int) (string, error) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return fmt.Sprintf("%dms", ms), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"30ms", "10ms", "20ms"}, out)
	})

	t.Run("first error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		out, err := Map(context.Background(), pool, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
			if n == 2 {
				return 0, boom
			}
			return n, nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, out)
	})

	t.Run("no inputs", func(t *testing.T) {
		out, err := Map(context.Background(), pool, nil, func(_ context.Context, n int) (int, error) { return n, nil })
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestNewWorkerPool_InvalidWorkerCount(t *testing.T) {
	tests := []struct {
		name        string
		workerCount int
		expected    int
	}{
		{
			name:        "zero workers defaults to 1",
			workerCount: 0,
			expected:    1,
		},
		{
			name:        "negative workers defaults to 1",
			workerCount: -1,
			expected:    1,
		},
		{
			name:        "negative large number defaults to 1",
			workerCount: -100,
			expected:    1,
		},
		{
			name:        "positive workers returns same count",
			workerCount: 5,
			expected:    5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workerCount)
			require.NotNil(t, pool)
			assert.Equal(t, tt.expected, pool.workerCount)
		})
	}
}
