package syncop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFanOutParallel_IndexOrderedReplies(t *testing.T) {
	selected := []bool{true, false, true, true}
	replies := make([]Reply[int], len(selected))

	n, err := FanOutParallel(context.Background(), selected, replies, nil, func(ctx context.Context, idx int) (int, error) {
		time.Sleep(time.Duration(len(selected)-idx) * time.Millisecond)
		return idx * 10, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.False(t, replies[1].Valid, "unselected slot must remain wiped")
	require.True(t, replies[0].Valid)
	require.Equal(t, 0, replies[0].Value)
	require.True(t, replies[2].Valid)
	require.Equal(t, 20, replies[2].Value)
	require.True(t, replies[3].Valid)
	require.Equal(t, 30, replies[3].Value)
}

func TestFanOutParallel_PartialFailureCounted(t *testing.T) {
	selected := []bool{true, true, true}
	replies := make([]Reply[int], len(selected))
	boom := errors.New("boom")

	n, err := FanOutParallel(context.Background(), selected, replies, nil, func(ctx context.Context, idx int) (int, error) {
		if idx == 1 {
			return 0, boom
		}
		return idx, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.ErrorIs(t, replies[1].Err, boom)
}

func TestFanOutParallel_BoundedConcurrency(t *testing.T) {
	selected := []bool{true, true, true, true}
	replies := make([]Reply[struct{}], len(selected))

	var inFlight, maxObserved atomic.Int64
	_, err := FanOutParallel(context.Background(), selected, replies, &Config{MaxConcurrency: 2}, func(ctx context.Context, idx int) (struct{}, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxObserved.Load()
			if n <= cur || maxObserved.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, maxObserved.Load(), int64(2))
}

func TestFanOutParallel_ZeroSelectedIsNoop(t *testing.T) {
	selected := []bool{false, false}
	replies := make([]Reply[int], 2)
	n, err := FanOutParallel(context.Background(), selected, replies, nil, func(ctx context.Context, idx int) (int, error) {
		t.Fatal("op must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFanOutSequential_StopsOnContextCancel(t *testing.T) {
	selected := []bool{true, true, true}
	replies := make([]Reply[int], len(selected))
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	_, err := FanOutSequential(ctx, selected, replies, func(ctx context.Context, idx int) (int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return idx, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestFanOutSequential_OrderedCalls(t *testing.T) {
	selected := []bool{true, true, true}
	replies := make([]Reply[int], len(selected))

	var order []int
	n, err := FanOutSequential(context.Background(), selected, replies, func(ctx context.Context, idx int) (int, error) {
		order = append(order, idx)
		return idx, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []int{0, 1, 2}, order)
}
