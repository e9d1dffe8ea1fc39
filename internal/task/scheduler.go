package task

import (
	"context"
	"runtime"
	"sync"
)

// Config controls Runtime construction.
type Config struct {
	// Workers is the number of worker goroutines that execute runnable
	// Tasks. Defaults to GOMAXPROCS if <= 0.
	Workers int

	// QueueSize bounds the run queue's buffer. Defaults to 256 if <= 0.
	QueueSize int

	// StackSize is accepted for interface fidelity with the source design's
	// spawn(scheduler, ..., stack_size) contract, but has no effect: Go
	// goroutines grow their stacks on demand, so there is nothing to size.
	// See SPEC_FULL.md §4.1.
	StackSize int
}

// Runtime is the scheduler: it owns a pool of worker goroutines, a run
// queue, and accounts for the set of currently-waiting Tasks.
type Runtime struct {
	queue chan func()

	mu      sync.Mutex
	waiting map[*Task]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewRuntime starts a Runtime with the given Config (nil for defaults).
func NewRuntime(cfg *Config) *Runtime {
	workers := runtime.GOMAXPROCS(0)
	queueSize := 256
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			queueSize = cfg.QueueSize
		}
	}

	r := &Runtime{
		queue:   make(chan func(), queueSize),
		waiting: make(map[*Task]struct{}),
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

func (r *Runtime) worker() {
	defer r.wg.Done()
	for fn := range r.queue {
		fn()
	}
}

// Stop closes the run queue and waits for in-flight work to drain. Spawn
// called after Stop returns ErrOutOfResources. Stop must not be called with
// Tasks still suspended (waiting); callers should ensure outstanding
// Barriers have all been woken first.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

// Spawn creates a new Task, running fn to completion on a worker goroutine,
// then invoking onDone with fn's result. frame and opaque are attached to
// the Task for the duration of fn. ctx bounds the spawned Task's lifetime:
// cancelling it is observed by any Suspend call the Task makes, so callers
// that dispatch a whole operation as a Task (dispatch.Engine.Execute,
// syncop's Runtime-backed fan-out) can cancel every Task it spawned by
// cancelling the one context they were given.
func (r *Runtime) Spawn(ctx context.Context, frame *Frame, opaque any, fn Func, onDone CompletionFunc) error {
	if ctx == nil {
		panic("task: Spawn called with a nil context")
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrOutOfResources
	}
	r.mu.Unlock()

	t := &Task{
		runtime: r,
		frame:   frame,
		opaque:  opaque,
		state:   stateRunnable,
		wake:    make(chan struct{}),
	}

	job := func() {
		t.mu.Lock()
		t.state = stateRunning
		t.mu.Unlock()

		taskCtx := context.WithValue(ctx, taskContextKey{}, t)
		result, err := fn(taskCtx, t)

		t.mu.Lock()
		t.state = stateDone
		t.mu.Unlock()

		if onDone != nil {
			onDone(result, err)
		}
	}

	select {
	case r.queue <- job:
		return nil
	default:
		// Queue is momentarily full: block the submitter rather than
		// dropping work, same as a run queue with a waiting producer.
		r.queue <- job
		return nil
	}
}

func (r *Runtime) noteWaiting(t *Task) {
	r.mu.Lock()
	r.waiting[t] = struct{}{}
	r.mu.Unlock()
}

func (r *Runtime) noteRunnable(t *Task) {
	r.mu.Lock()
	delete(r.waiting, t)
	r.mu.Unlock()
}

// WaitingCount returns the number of Tasks currently suspended on this
// Runtime. Exposed for diagnostics and tests.
func (r *Runtime) WaitingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

func (r *Runtime) gosched() {
	runtime.Gosched()
}
