package utils

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_PerItemResults(t *testing.T) {
	keys := []string{"PETR4", "BAD1", "VALE3"}
	results := FanOut(context.Background(), keys, 2, func(_ context.Context, key string) (float64, error) {
		if key == "BAD1" {
			return 0, errors.New("invalid symbol")
		}
		return float64(len(key)), nil
	})

	require.Len(t, results, 3)
	for i, key := range keys {
		assert.Equal(t, key, results[i].Key)
	}

	assert.Equal(t, map[string]float64{"PETR4": 5, "VALE3": 5}, Successes(results))
	failures := Failures(results)
	require.Len(t, failures, 1)
	assert.EqualError(t, failures["BAD1"], "invalid symbol")
	assert.EqualError(t, FirstError(results), "invalid symbol")
}

func TestFanOut_RespectsLimit(t *testing.T) {
	var inFlight, peak int32
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("K%d", i)
	}

	FanOut(context.Background(), keys, 3, func(_ context.Context, _ string) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Positive(t, atomic.LoadInt32(&peak))
}

func TestFanOut_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := FanOut(ctx, []string{"A", "B"}, 1, func(context.Context, string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFanOut_Empty(t *testing.T) {
	results := FanOut(context.Background(), nil, 0, func(context.Context, string) (int, error) {
		return 0, nil
	})
	assert.Empty(t, results)
	assert.NoError(t, FirstError(results))
	assert.Empty(t, Successes(results))
}
