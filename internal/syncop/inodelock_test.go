package syncop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTryInodeLock_OptimisticConvertsToSequential implements spec.md
// scenario F: targets=[A,B,C], B already holds a conflicting lock. The
// initial parallel attempt must see WouldBlock on B, release whatever it
// took on A and C, then retry sequentially (blocking) across A, B, C, and
// finish with every target locked.
func TestTryInodeLock_OptimisticConvertsToSequential(t *testing.T) {
	const a, b, c = 0, 1, 2
	selected := []bool{true, true, true}
	lockedOn := make([]bool, 3)

	var mu sync.Mutex
	held := map[int]bool{b: true} // B already holds a conflicting lock
	var parallelAttempts, sequentialAttempts []int

	lock := func(ctx context.Context, idx int, blocking bool) error {
		mu.Lock()
		defer mu.Unlock()

		if !blocking {
			parallelAttempts = append(parallelAttempts, idx)
			if held[idx] {
				return ErrWouldBlock
			}
			held[idx] = true
			return nil
		}

		sequentialAttempts = append(sequentialAttempts, idx)
		held[idx] = true // blocking acquisition always eventually succeeds
		return nil
	}

	unlock := func(ctx context.Context, idx int) error {
		mu.Lock()
		defer mu.Unlock()
		delete(held, idx)
		return nil
	}

	err := TryInodeLock(context.Background(), selected, lockedOn, nil, lock, unlock)
	require.NoError(t, err)

	require.Equal(t, []bool{true, true, true}, lockedOn, "final locked_on bitmap must be [1,1,1]")
	require.ElementsMatch(t, []int{a, b, c}, parallelAttempts)
	require.Equal(t, []int{a, b, c}, sequentialAttempts, "sequential retry must proceed in selected-index order")
}

func TestTryInodeLock_NoContentionStaysParallel(t *testing.T) {
	selected := []bool{true, true}
	lockedOn := make([]bool, 2)

	var sequentialCalls int
	lock := func(ctx context.Context, idx int, blocking bool) error {
		if blocking {
			sequentialCalls++
		}
		return nil
	}
	unlock := func(ctx context.Context, idx int) error { return nil }

	err := TryInodeLock(context.Background(), selected, lockedOn, nil, lock, unlock)
	require.NoError(t, err)
	require.Equal(t, 0, sequentialCalls)
	require.Equal(t, []bool{true, true}, lockedOn)
}
