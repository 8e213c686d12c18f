package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesOrder(t *testing.T) {
	inputs := []int{5, 3, 8, 1, 9, 2}
	out := Run(context.Background(), 3, inputs, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, out, len(inputs))
	for i, o := range out {
		assert.Equal(t, i, o.Index)
		assert.NoError(t, o.Err)
		assert.Equal(t, inputs[i]*10, o.Value)
	}
}

func TestRunCapturesErrorsPerTask(t *testing.T) {
	inputs := []int{1, 2, 3, 4}
	out := Run(context.Background(), 2, inputs, func(_ context.Context, n int) (string, error) {
		if n%2 == 0 {
			return "", fmt.Errorf("task %d failed", n)
		}
		return fmt.Sprintf("ok-%d", n), nil
	})

	assert.NoError(t, out[0].Err)
	assert.Error(t, out[1].Err)
	assert.NoError(t, out[2].Err)
	assert.Error(t, out[3].Err)
	assert.Equal(t, "ok-1", out[0].Value)
}

func TestRunBoundsConcurrency(t *testing.T) {
	var active, peak int64
	inputs := make([]int, 20)
	Run(context.Background(), 4, inputs, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, peak, int64(4))
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []int{1, 2, 3}
	out := Run(ctx, 2, inputs, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	for _, o := range out {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	out := Run(context.Background(), 4, nil, func(_ context.Context, _ int) (int, error) {
		return 0, nil
	})
	assert.Empty(t, out)
}
