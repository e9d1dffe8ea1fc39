package barrier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBarrier_WaitsForExactCount(t *testing.T) {
	b := New(3)

	released := make(chan struct{})
	go func() {
		require.NoError(t, b.Wait(context.Background(), 3))
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("barrier released before all wakes")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.Wake())
	require.NoError(t, b.Wake())

	select {
	case <-released:
		t.Fatal("barrier released early")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.Wake())

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("barrier never released")
	}
}

func TestBarrier_ExcessWakeIsError(t *testing.T) {
	b := New(1)
	require.NoError(t, b.Wake())
	require.ErrorIs(t, b.Wake(), ErrExcessWake)
}

func TestBarrier_ZeroCountImmediatelySatisfied(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Wait(context.Background(), 0))
}

func TestBarrier_ContextCancel(t *testing.T) {
	b := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Wait(ctx, 1), context.Canceled)
}

func TestBarrier_ConcurrentWakesFromManyGoroutines(t *testing.T) {
	const n = 50
	b := New(n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, b.Wake())
		}()
	}

	require.NoError(t, b.Wait(context.Background(), n))
	wg.Wait()
}
