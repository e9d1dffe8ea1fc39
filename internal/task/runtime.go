// Package task implements the cooperative task runtime described by the
// coordinator's design: a small pool of worker goroutines multiplexes many
// long-running operations, each of which blocks on network replies, without
// tying up a worker per operation.
//
// Go gives every goroutine its own growable stack for free, so the explicit
// stack-swap/yield machinery of the source design collapses into ordinary
// sequential code running on a goroutine (see SPEC_FULL.md §4.1). What
// remains, and is implemented here, is the bookkeeping contract: a Task has
// exactly one of {runnable, waiting, running, done} state at any instant, and
// Suspend/Wake are a Task's blocking primitive. A suspended Task keeps the
// worker goroutine it runs on blocked until it is woken; that worker runs no
// other Task in the meantime.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfResources is returned by Spawn when the Runtime cannot accept
// further work (e.g. it has been stopped).
var ErrOutOfResources = errors.New("task: out of resources")

// state is the lifecycle of a Task, per invariant 1 of the data model: a
// Task is on the run queue xor the wait queue xor executing xor
// complete-and-awaiting-reap.
type state int

const (
	stateRunnable state = iota
	stateRunning
	stateWaiting
	stateDone
)

type (
	// Frame carries the originator identity and per-operation scratch space
	// that a Task inherits from whatever convenience operation spawned it.
	Frame struct {
		OriginatorUUID string
		OperationCode  string

		// Scratch is opaque per-operation storage (e.g. the Barrier and
		// per-peer reply slots used by a fan-out helper). Components that
		// need typed access should wrap Frame rather than type-assert this
		// directly in more than one place.
		Scratch any
	}

	// Func is the user function executed by a spawned Task. It must not
	// retain t beyond its own execution, other than to call t's exported
	// methods (Yield, Suspend is usually called by runtime helpers on the
	// caller's behalf).
	Func func(ctx context.Context, t *Task) (any, error)

	// CompletionFunc is invoked once Func returns, with its result.
	CompletionFunc func(result any, err error)

	// Task is a suspendable unit of work executed on one of its Runtime's
	// worker goroutines: it only blocks at explicit suspension points.
	Task struct {
		mu    sync.Mutex
		state state

		runtime *Runtime
		frame   *Frame
		opaque  any

		wake chan struct{} // closed by Wake, recreated per suspend cycle
	}
)

// Current returns the Task descriptor of the calling goroutine, or nil if
// the caller is not running inside a Task spawned by this package.
func Current(ctx context.Context) *Task {
	t, _ := ctx.Value(taskContextKey{}).(*Task)
	return t
}

type taskContextKey struct{}

// Frame returns the Frame this Task was spawned with.
func (t *Task) Frame() *Frame { return t.frame }

// Opaque returns the private opaque pointer this Task was spawned with.
func (t *Task) Opaque() any { return t.opaque }

// Yield returns control to the scheduler without changing which queue holds
// the Task. For a goroutine-backed Task this is a cooperative scheduling
// hint; it is implemented as runtime.Gosched via the Runtime, keeping the
// call meaningful (and testable) rather than a silent no-op.
func (t *Task) Yield() {
	t.runtime.gosched()
}

// Suspend atomically moves the calling Task from "executing" to waiting,
// then blocks until Wake(t) is called or ctx is done. It is the sole
// blocking primitive a Task may use; internal/barrier.Barrier.Wait calls
// Suspend in a loop whenever it is invoked by code running inside a Task
// (see internal/syncop's Runtime-backed fan-out). The wait happens on the
// worker goroutine executing the Task, so that worker is not released to
// run other Tasks until Suspend returns.
//
// A Task may be suspended and woken repeatedly over its lifetime (a
// Barrier wakes its waiter once per reply, not once total), so the wake
// channel is replaced with a fresh one on every successful wake, per the
// "recreated per suspend cycle" contract described on Task.wake.
func (t *Task) Suspend(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateRunning {
		t.mu.Unlock()
		panic("task: suspend called on a task that is not running")
	}
	t.state = stateWaiting
	ch := t.wake
	t.mu.Unlock()

	t.runtime.noteWaiting(t)
	defer t.runtime.noteRunnable(t)

	select {
	case <-ch:
		t.mu.Lock()
		t.state = stateRunning
		t.wake = make(chan struct{})
		t.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wake signals the named Task's current wake channel, letting a Suspend call
// blocked on it return. It is idempotent against races where Wake is called
// before the Task has actually reached Suspend (the channel is simply closed
// early, and the subsequent Suspend sees it already closed and returns
// immediately), which internal/barrier.Barrier relies on: a reply can arrive
// and call Wake before the fanned-out Task has looped back into Suspend.
func Wake(t *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.wake:
		// already woken/closed
	default:
		close(t.wake)
	}
}
