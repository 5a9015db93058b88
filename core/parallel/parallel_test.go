package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	seen := make([]int32, 103)
	Parallelize(len(seen), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "item %d", i)
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	calls := int32(0)
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestEffectiveJobs(t *testing.T) {
	cpus := runtime.NumCPU()
	assert.Equal(t, 1, EffectiveJobs(0))
	assert.Equal(t, 1, EffectiveJobs(1))
	assert.Equal(t, 4, EffectiveJobs(4))
	assert.Equal(t, cpus, EffectiveJobs(-1))
	assert.Equal(t, 1, EffectiveJobs(-cpus-5))
}

func TestForEach(t *testing.T) {
	var sum int64
	err := ForEach(context.Background(), -1, 100, func(_ context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4950), sum)
}

func TestForEachReturnsFirstError(t *testing.T) {
	boom := fmt.Errorf("boom")
	err := ForEach(context.Background(), 1, 10, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
}

func TestForEachRecoversPanics(t *testing.T) {
	err := ForEach(context.Background(), 2, 4, func(_ context.Context, i int) error {
		if i == 2 {
			panic("worker exploded")
		}
		return nil
	})
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "worker exploded", panicErr.PanicValue)
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ForEach(ctx, 1, 10, func(_ context.Context, _ int) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
