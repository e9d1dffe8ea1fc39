package syncop

import (
	"context"
	"errors"
)

// ErrWouldBlock is returned by a LockFunc's non-blocking attempt when the
// target already holds a conflicting lock.
var ErrWouldBlock = errors.New("syncop: would block")

// LockFunc attempts to acquire a lock on one target, honoring blocking,
// which selects between the optimistic (non-blocking) and the sequential
// fallback (blocking) acquisition mode.
type LockFunc func(ctx context.Context, targetIndex int, blocking bool) error

// UnlockFunc releases a previously held lock on one target.
type UnlockFunc func(ctx context.Context, targetIndex int) error

// TryInodeLock implements spec.md §4.4's classical livelock-avoidance
// protocol, used identically for inode locks (by range) and entry locks
// (by name): attempt a non-blocking lock on every selected target in
// parallel; if any target reports ErrWouldBlock, release every lock this
// attempt successfully took, then retry — this time sequentially, with
// blocking acquisition — in selected-index order.
//
// lockedOn, sized len(selected), is set to true at index i once target i
// holds the lock (by either the optimistic or the sequential attempt), and
// is the caller's record of which locks must eventually be released.
func TryInodeLock(ctx context.Context, selected []bool, lockedOn []bool, cfg *Config, lock LockFunc, unlock UnlockFunc) error {
	replies := make([]Reply[struct{}], len(selected))

	_, err := FanOutParallel(ctx, selected, replies, cfg, func(ctx context.Context, idx int) (struct{}, error) {
		return struct{}{}, lock(ctx, idx, false)
	})
	if err != nil {
		return err
	}

	var anyWouldBlock bool
	for i, sel := range selected {
		if !sel {
			continue
		}
		if replies[i].Err == nil {
			lockedOn[i] = true
		} else if errors.Is(replies[i].Err, ErrWouldBlock) {
			anyWouldBlock = true
		}
	}

	if !anyWouldBlock {
		return firstNonWouldBlockErr(selected, replies)
	}

	// release every lock this optimistic attempt took, across the whole
	// selected set, before the sequential retry.
	for i, sel := range selected {
		if sel && lockedOn[i] {
			if uerr := unlock(ctx, i); uerr != nil {
				return uerr
			}
			lockedOn[i] = false
		}
	}

	seqReplies := make([]Reply[struct{}], len(selected))
	_, firstErr := FanOutSequential(ctx, selected, seqReplies, func(ctx context.Context, idx int) (struct{}, error) {
		return struct{}{}, lock(ctx, idx, true)
	})

	for i, sel := range selected {
		if !sel || !seqReplies[i].Valid {
			continue
		}
		if seqReplies[i].Err != nil {
			if firstErr == nil {
				firstErr = seqReplies[i].Err
			}
			continue
		}
		lockedOn[i] = true
	}
	return firstErr
}

func firstNonWouldBlockErr[T any](selected []bool, replies []Reply[T]) error {
	for i, sel := range selected {
		if sel && replies[i].Err != nil {
			return replies[i].Err
		}
	}
	return nil
}
