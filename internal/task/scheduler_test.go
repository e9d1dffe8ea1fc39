package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntime_SpawnCompletes(t *testing.T) {
	rt := NewRuntime(&Config{Workers: 2})
	defer rt.Stop()

	done := make(chan struct{})
	var gotResult any
	var gotErr error

	err := rt.Spawn(context.Background(), &Frame{OriginatorUUID: "u1", OperationCode: "SNAP_CREATE"}, nil,
		func(ctx context.Context, tk *Task) (any, error) {
			require.Equal(t, tk, Current(ctx))
			return "ok", nil
		},
		func(result any, err error) {
			gotResult, gotErr = result, err
			close(done)
		},
	)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not complete")
	}

	require.NoError(t, gotErr)
	require.Equal(t, "ok", gotResult)
}

func TestRuntime_SuspendWake(t *testing.T) {
	rt := NewRuntime(&Config{Workers: 2})
	defer rt.Stop()

	ready := make(chan *Task, 1)
	done := make(chan struct{})

	err := rt.Spawn(context.Background(), nil, nil, func(ctx context.Context, tk *Task) (any, error) {
		ready <- tk
		if err := tk.Suspend(ctx); err != nil {
			return nil, err
		}
		return "woke", nil
	}, func(result any, err error) {
		require.NoError(t, err)
		require.Equal(t, "woke", result)
		close(done)
	})
	require.NoError(t, err)

	target := <-ready
	require.Eventually(t, func() bool { return rt.WaitingCount() == 1 }, time.Second, time.Millisecond)

	Wake(target)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not wake")
	}
	require.Equal(t, 0, rt.WaitingCount())
}

func TestRuntime_SpawnAfterStop(t *testing.T) {
	rt := NewRuntime(&Config{Workers: 1})
	rt.Stop()

	err := rt.Spawn(context.Background(), nil, nil, func(ctx context.Context, tk *Task) (any, error) {
		return nil, nil
	}, nil)
	require.ErrorIs(t, err, ErrOutOfResources)
}

func TestRuntime_FrameAndOpaque(t *testing.T) {
	rt := NewRuntime(&Config{Workers: 1})
	defer rt.Stop()

	done := make(chan struct{})
	type opaque struct{ N int }

	err := rt.Spawn(context.Background(), &Frame{OriginatorUUID: "u2"}, &opaque{N: 7},
		func(ctx context.Context, tk *Task) (any, error) {
			require.Equal(t, "u2", tk.Frame().OriginatorUUID)
			require.Equal(t, 7, tk.Opaque().(*opaque).N)
			return nil, nil
		},
		func(result any, err error) {
			close(done)
		},
	)
	require.NoError(t, err)
	<-done
}
