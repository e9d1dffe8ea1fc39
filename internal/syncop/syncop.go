// Package syncop implements the Replicated Fan-Out Operation
// (SPEC_FULL.md §4.4, spec.md §4.4 "cluster-syncop"): applying the same
// operation to each selected element of an ordered target list and
// gathering per-element replies deterministically, by index rather than
// completion order.
//
// Parallel dispatch's bounded concurrency is grounded on the teacher's
// microbatch package (github.com/joeycumines/go-utilpkg/microbatch): where
// microbatch bounds concurrent BatchProcessor invocations with a buffered
// "running" channel, this package bounds concurrent per-target sends the
// same way, but via golang.org/x/sync/semaphore.Weighted, per
// SPEC_FULL.md §4.4's explicit choice to make that bound configurable
// rather than relying on an implicit single-threaded event loop.
//
// When Config.Runtime is set, each per-target send is dispatched as an
// internal/task.Task via Spawn rather than a bare goroutine; this is what
// makes dispatch.Engine's Task Runtime field actually schedule real work,
// rather than sitting idle once constructed.
package syncop

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/joeycumines/clustermgmt/internal/barrier"
	"github.com/joeycumines/clustermgmt/internal/task"
)

// Reply is one target's outcome, written into its index-ordered slot.
// Per spec.md §4.4's per-reply contract, a slot is wiped (zero Reply)
// before use and only marked Valid once its operation's result has been
// stored; Fan-Out guarantees Valid is never true before the wipe.
type Reply[T any] struct {
	Valid bool
	Value T
	Err   error
}

// OpFunc performs one target's operation and returns its result.
type OpFunc[T any] func(ctx context.Context, targetIndex int) (T, error)

// Config bounds a parallel Fan-Out's concurrency.
type Config struct {
	// MaxConcurrency caps the number of in-flight per-target operations.
	// Defaults to the number of selected targets (no bound in practice)
	// if <= 0.
	MaxConcurrency int64

	// Runtime, when set, dispatches each per-target operation as a
	// task.Task (via Spawn) instead of a bare goroutine, so it runs on one
	// of the Runtime's worker goroutines. Left nil, or if Spawn fails, the
	// target runs on a bare goroutine.
	Runtime *task.Runtime
}

// FanOutParallel implements the "on-list" pattern: dispatches op to every
// selected target concurrently (bounded by cfg.MaxConcurrency), then
// blocks on a single barrier.Barrier for exactly count-of-selected
// wake-ups, matching spec.md §4.4's "waits on a single Barrier for
// exactly count-of-selected wake-ups" and §5's ordering guarantee that the
// reply callback is the sole writer of its slot.
//
// replies must be pre-sized to len(selected); only selected indices are
// touched. Returns the count of successful targets (Err == nil).
func FanOutParallel[T any](ctx context.Context, selected []bool, replies []Reply[T], cfg *Config, op OpFunc[T]) (successCount int, err error) {
	n := 0
	for _, sel := range selected {
		if sel {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}

	maxConcurrency := int64(n)
	if cfg != nil && cfg.MaxConcurrency > 0 {
		maxConcurrency = cfg.MaxConcurrency
	}
	sem := semaphore.NewWeighted(maxConcurrency)

	b := barrier.New(n)
	defer b.Destroy()

	for i, sel := range selected {
		if !sel {
			continue
		}
		replies[i] = Reply[T]{} // wipe before use

		if err := sem.Acquire(ctx, 1); err != nil {
			// context died mid-dispatch: still must reach the barrier's
			// target count so any concurrent Wait unblocks, rather than
			// hanging a sibling goroutine forever.
			replies[i] = Reply[T]{Valid: true, Err: err}
			_ = b.Wake()
			continue
		}

		run := func(runCtx context.Context, idx int) {
			defer sem.Release(1)
			defer func() { _ = b.Wake() }()

			v, opErr := op(runCtx, idx)
			replies[idx] = Reply[T]{Valid: true, Value: v, Err: opErr}
		}

		spawned := false
		if cfg != nil && cfg.Runtime != nil {
			idx := i
			spawnErr := cfg.Runtime.Spawn(ctx, &task.Frame{}, nil, func(taskCtx context.Context, _ *task.Task) (any, error) {
				run(taskCtx, idx)
				return nil, nil
			}, nil)
			spawned = spawnErr == nil
		}
		if !spawned {
			go run(ctx, i)
		}
	}

	if waitErr := b.Wait(ctx, n); waitErr != nil {
		return 0, waitErr
	}

	for i, sel := range selected {
		if sel && replies[i].Valid && replies[i].Err == nil {
			successCount++
		}
	}
	return successCount, nil
}

// FanOutSequential implements the sequential pattern: dispatches op to one
// selected target, waits for its reply, then repeats for the next — used,
// per spec.md §4.4, as the fallback once optimistic parallel locking
// returns WouldBlock on any target.
func FanOutSequential[T any](ctx context.Context, selected []bool, replies []Reply[T], op OpFunc[T]) (successCount int, err error) {
	for i, sel := range selected {
		if !sel {
			continue
		}
		if err := ctx.Err(); err != nil {
			return successCount, err
		}

		replies[i] = Reply[T]{} // wipe before use

		v, opErr := op(ctx, i)
		replies[i] = Reply[T]{Valid: true, Value: v, Err: opErr}
		if opErr == nil {
			successCount++
		}
	}
	return successCount, nil
}
