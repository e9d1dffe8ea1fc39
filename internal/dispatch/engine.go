// Package dispatch implements the Multi-Phase Dispatch Engine
// (SPEC_FULL.md §4.5): the single entry point that runs one administrative
// operation to completion across every eligible peer, honoring the
// roster-snapshot, originator-tagging, lock-before-act, unlock-on-every-exit
// and CLI-response-last invariants, by composing internal/roster,
// internal/lockservice, internal/syncop and internal/transport.
package dispatch

import (
	"context"

	"github.com/joeycumines/clustermgmt/internal/collaborators"
	"github.com/joeycumines/clustermgmt/internal/coordinator"
	"github.com/joeycumines/clustermgmt/internal/lockservice"
	"github.com/joeycumines/clustermgmt/internal/logging"
	"github.com/joeycumines/clustermgmt/internal/roster"
	"github.com/joeycumines/clustermgmt/internal/syncop"
	"github.com/joeycumines/clustermgmt/internal/task"
	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// Result is the CLI-visible outcome of one dispatch, composed only once
// every phase (including Unlock) has returned, per invariant 6.
type Result struct {
	OpRet    int32
	OpErrno  int32
	OpErrStr string
	Dict     wireops.Dict
}

// Engine wires the collaborators a single node needs to drive one
// transaction's six phases to completion.
type Engine struct {
	SelfUUID      string
	Roster        *roster.Roster
	Locks         *lockservice.Service
	Transport     transport.Transport
	Collaborators collaborators.Set
	Log           *logging.Logger
	SyncOp        *syncop.Config
	Quorum        QuorumPolicy

	// Runtime, when set, runs the whole transaction as a single
	// internal/task.Task (via Spawn) and threads itself through to every
	// syncop.FanOutParallel call the transaction makes, so each phase's
	// per-peer RPCs are themselves dispatched as Tasks rather than bare
	// goroutines. Left nil, Execute calls executeDirect synchronously on
	// the caller's own goroutine, exactly as it always has.
	Runtime *task.Runtime
}

// Execute runs op to completion, per SPEC_FULL.md §4.5's phase table.
// transactionID identifies this dispatch for logging and wire correlation;
// originatorUUID is injected into the dictionary so every phase and peer
// can recognize the originating node, per invariant 2.
//
// When e.Runtime is set, the entire transaction runs as one Task spawned
// on that Runtime, and Execute blocks the caller until it completes; this
// is the production dispatch path cmd/coordinatord wires up, matching
// SPEC_FULL.md §4.5's retirement of the non-Task dispatch mode. When
// e.Runtime is nil (as in tests that construct an Engine{} literal
// directly), Execute runs executeDirect inline on the calling goroutine.
func (e *Engine) Execute(ctx context.Context, op wireops.OperationCode, inputDict wireops.Dict, originatorUUID, transactionID string) Result {
	if e.Runtime == nil {
		return e.executeDirect(ctx, op, inputDict, originatorUUID, transactionID)
	}

	type outcome struct {
		result Result
	}
	done := make(chan outcome, 1)
	spawnErr := e.Runtime.Spawn(ctx, &task.Frame{OriginatorUUID: originatorUUID, OperationCode: string(op)}, nil,
		func(taskCtx context.Context, _ *task.Task) (any, error) {
			done <- outcome{result: e.executeDirect(taskCtx, op, inputDict, originatorUUID, transactionID)}
			return nil, nil
		}, nil)
	if spawnErr != nil {
		return e.executeDirect(ctx, op, inputDict, originatorUUID, transactionID)
	}

	select {
	case o := <-done:
		return o.result
	case <-ctx.Done():
		return Result{
			OpRet:    -1,
			OpErrno:  int32(coordinator.CodeTransport),
			OpErrStr: ctx.Err().Error(),
			Dict:     wireops.NewDict(),
		}
	}
}

// executeDirect is Execute's actual phase-table implementation, run either
// inline or inside a Runtime-spawned Task depending on e.Runtime.
func (e *Engine) executeDirect(ctx context.Context, op wireops.OperationCode, inputDict wireops.Dict, originatorUUID, transactionID string) Result {
	// invariant 1: roster snapshot. No peer whose generation exceeds
	// generation may be contacted by this transaction, ever.
	allPeers, generation := e.Roster.Snapshot()
	relax := op == wireops.OpSyncVolume

	var eligible []roster.Peer
	for _, p := range allPeers {
		if p.UUID == e.SelfUUID {
			continue
		}
		if roster.Eligible(p, generation, relax) {
			eligible = append(eligible, p)
		}
	}

	// invariant 2: originator tagging.
	dict := inputDict.Clone()
	if dict == nil {
		dict = wireops.NewDict()
	}
	dict["originator_uuid"] = originatorUUID

	// SPEC_FULL.md §4.5: the dual "is_synctasked vs. state machine" dispatch
	// mode named as an Open Question upstream is resolved by retiring the
	// second code path entirely; is_synctasked is still required on the wire
	// for compatibility, but its absence is now a hard rejection rather than
	// a silent fallback. No lock was ever attempted, so no unlock follows.
	if isSync, ok := dict.GetBool("is_synctasked"); !ok || !isSync {
		return Result{
			OpRet:    -1,
			OpErrno:  int32(coordinator.CodeLocalPhaseFailure),
			OpErrStr: "is_synctasked must be set: the non-synctasked dispatch path is retired",
			Dict:     wireops.NewDict(),
		}
	}

	tx := newTransaction(transactionID, originatorUUID, op, dict, eligible, generation)
	entries := lockEntriesFromDict(dict)

	if e.lockdown(ctx, tx, entries) {
		if e.preValidate(ctx, tx) {
			if e.brickOp(ctx, tx, wireops.BrickOpPre) {
				e.commit(ctx, tx)
				// invariant 5: whether commit succeeded or aborted, brick-op
				// "post" and post-validate still run so peers can undo any
				// half-applied state.
				e.brickOp(ctx, tx, wireops.BrickOpPost)
				e.postValidate(ctx, tx)
			} else {
				// brick-op "pre" failed: fall through to brick-op "post" only,
				// to disable any barriers the pre phase armed, then unlock —
				// post-validate is not invoked for this failure path.
				e.brickOp(ctx, tx, wireops.BrickOpPost)
			}
		} else {
			// pre-validate failed before any brick-op or commit RPC went
			// out; post-validate still runs (told op_ret=failure) so peers
			// can tear down anything pre-validate itself may have staged.
			e.postValidate(ctx, tx)
		}
	}

	// invariants 4 & 6: unlock on every exit, CLI response assembled last.
	e.unlock(ctx, tx, entries)
	return tx.result()
}

// lockdown acquires the local lock entries, then — only if that succeeds —
// fans MGMT_V3_LOCK out to every eligible peer. Reports whether the whole
// phase succeeded.
func (e *Engine) lockdown(ctx context.Context, tx *transaction, entries []lockservice.Entry) bool {
	if err := e.Locks.AcquireMany(entries, tx.OriginatorUUID); err != nil {
		tx.recordLocalFailure(-1, int32(coordinator.CodeAnotherTransaction), err.Error())
		return false
	}
	tx.IsAcquired = true

	e.fanOut(ctx, tx, tx.Peers, wireops.PhaseLock, "", nil, true)
	return !tx.hasFailure()
}

// preValidate runs the local pre_validate_fn, then fans MGMT_V3_PRE_VALIDATE
// out to every peer still eligible right now (the eligibility filter is
// re-applied live at every remote phase from here on, per spec.md §4.5 —
// a peer that disconnected after lockdown drops out silently).
func (e *Engine) preValidate(ctx context.Context, tx *transaction) bool {
	if e.Collaborators.PreValidate != nil {
		if ok, errStr, errno := e.Collaborators.PreValidate(ctx, tx.Op, tx.InputDict); !ok {
			tx.recordLocalFailure(-1, errno, errStr)
		}
	}
	e.fanOut(ctx, tx, e.liveEligible(tx), wireops.PhasePreValidate, "", nil, true)
	return !tx.hasFailure()
}

// brickOp runs the local brick_op_fn (the wire protocol carries no errno
// for this phase, only op_ret/op_errstr) and fans MGMT_V3_BRICK_OP out,
// tagged with sub-phase (pre or post).
func (e *Engine) brickOp(ctx context.Context, tx *transaction, sub wireops.BrickOpPhase) bool {
	if e.Collaborators.BrickOp != nil {
		if ok, errStr := e.Collaborators.BrickOp(ctx, tx.Op, tx.InputDict); !ok {
			tx.recordLocalFailure(-1, 0, errStr)
		}
	}
	e.fanOut(ctx, tx, e.liveEligible(tx), wireops.PhaseBrickOp, sub, nil, true)
	return !tx.hasFailure()
}

// commit gates on the configured QuorumPolicy, then runs the local
// commit_fn and fans MGMT_V3_COMMIT out. Commit need not be idempotent and
// the engine never replays it, per spec.md §4.5.
func (e *Engine) commit(ctx context.Context, tx *transaction) bool {
	if err := checkQuorum(e.Quorum, tx.reachableCount(), len(tx.Peers)); err != nil {
		tx.recordLocalFailure(-1, int32(coordinator.CodeInternal), err.Error())
		return false
	}
	if e.Collaborators.Commit != nil {
		if ok, errStr, errno := e.Collaborators.Commit(ctx, tx.Op, tx.InputDict); !ok {
			tx.recordLocalFailure(-1, errno, errStr)
		}
	}
	e.fanOut(ctx, tx, e.liveEligible(tx), wireops.PhaseCommit, "", nil, true)
	return !tx.hasFailure()
}

// postValidate runs the local post_validate_fn (told the transaction's
// op_ret so far) and fans MGMT_V3_POST_VALIDATE out. Its own failure is
// recorded but never halts progress toward Unlock.
func (e *Engine) postValidate(ctx context.Context, tx *transaction) {
	opRet := tx.currentOpRet()
	if e.Collaborators.PostValidate != nil {
		if ok, errStr := e.Collaborators.PostValidate(ctx, tx.Op, opRet, tx.InputDict); !ok {
			tx.recordLocalFailure(-1, 0, errStr)
		}
	}
	e.fanOut(ctx, tx, e.liveEligible(tx), wireops.PhasePostValidate, "", &opRet, true)
}

// unlock best-effort releases the local lock entries (only if this node
// ever acquired them) and sends MGMT_V3_UNLOCK to every peer in the
// transaction's original eligible set, regardless of current eligibility
// and of whether lockdown got as far as contacting that peer — a peer
// that dropped out mid-transaction may still hold a lock this transaction
// granted it, so unlock is attempted anyway and any failure is tolerated
// (best-effort, per invariant 4) rather than recorded against op_ret.
func (e *Engine) unlock(ctx context.Context, tx *transaction, entries []lockservice.Entry) {
	if tx.IsAcquired {
		_ = e.Locks.ReleaseMany(entries, tx.OriginatorUUID)
	}
	e.fanOut(ctx, tx, tx.Peers, wireops.PhaseUnlock, "", nil, false)
}

// syncOpConfig returns the *syncop.Config to use for this transaction's
// fan-outs: e.SyncOp's settings, plus e.Runtime threaded in so each
// per-target RPC is dispatched as a Task when one is configured. e.SyncOp
// itself is never mutated, so a shared Config on the Engine is safe to
// reuse across concurrent transactions.
func (e *Engine) syncOpConfig() *syncop.Config {
	if e.Runtime == nil {
		return e.SyncOp
	}
	cfg := syncop.Config{Runtime: e.Runtime}
	if e.SyncOp != nil {
		cfg.MaxConcurrency = e.SyncOp.MaxConcurrency
	}
	return &cfg
}

// liveEligible re-applies the eligibility filter against the roster's
// current state for every peer in tx's original snapshot: generation is
// still bounded by tx.SavedGeneration, but connected/friendship are read
// fresh, so a peer that disconnects mid-transaction drops out of every
// remote phase from that point on (spec.md §4.5, scenario C).
func (e *Engine) liveEligible(tx *transaction) []roster.Peer {
	relax := tx.Op == wireops.OpSyncVolume
	var targets []roster.Peer
	for _, p := range tx.Peers {
		live, ok := e.Roster.Get(p.UUID)
		if !ok || !roster.Eligible(live, tx.SavedGeneration, relax) {
			continue
		}
		targets = append(targets, live)
	}
	return targets
}

// fanOut submits one RPC per target, merging each reply into tx under its
// mutex. When recordFailures is false (Unlock only), replies and transport
// errors are still awaited but never turned into a recorded failure or an
// unreachable mark — Unlock's outcome never affects op_ret.
func (e *Engine) fanOut(ctx context.Context, tx *transaction, targets []roster.Peer, phase wireops.Phase, sub wireops.BrickOpPhase, opRetForPostValidate *int32, recordFailures bool) {
	if len(targets) == 0 {
		return
	}

	selected := make([]bool, len(targets))
	for i := range selected {
		selected[i] = true
	}
	replies := make([]syncop.Reply[struct{}], len(targets))

	_, _ = syncop.FanOutParallel(ctx, selected, replies, e.syncOpConfig(), func(ctx context.Context, idx int) (struct{}, error) {
		peer := targets[idx]
		req := wireops.Request{
			Phase:          phase,
			OperationCode:  tx.Op,
			TransactionID:  tx.ID,
			OriginatorUUID: tx.OriginatorUUID,
			BrickOpPhase:   sub,
			Dict:           tx.InputDict.Clone(),
		}
		if opRetForPostValidate != nil {
			req.Dict["op_ret"] = int64(*opRetForPostValidate)
		}

		resp, err := e.Transport.Send(ctx, peer.UUID, req)
		if err != nil {
			if !recordFailures {
				return struct{}{}, nil
			}
			tx.markUnreachable(peer.UUID)
			resp = wireops.Response{
				Phase:    phase,
				PeerUUID: peer.UUID,
				OpRet:    -1,
				OpErrno:  int32(coordinator.CodeTransport),
				ErrStr:   err.Error(),
			}
		}
		if recordFailures {
			tx.mergeReply(peer, resp)
		} else {
			tx.mergeReplyDictOnly(resp)
		}
		return struct{}{}, nil
	})
}
