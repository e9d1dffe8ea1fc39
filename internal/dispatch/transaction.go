package dispatch

import (
	"strings"
	"sync"

	"github.com/joeycumines/clustermgmt/internal/roster"
	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// transaction is the Transaction Context of spec.md §3: it lives for the
// duration of one dispatch. ResponseDict and the collated error string are
// merged under mu ("lock_dict" in spec.md §5) since reply callbacks for a
// single fan-out may run concurrently.
type transaction struct {
	ID             string
	OriginatorUUID string
	Op             wireops.OperationCode
	InputDict      wireops.Dict

	SavedGeneration int64
	Peers           []roster.Peer // eligible peers snapshotted at transaction start

	IsAcquired bool // true once local lock acquisition succeeded

	mu           sync.Mutex
	ResponseDict wireops.Dict
	errLines     []string
	firstOpRet   int32
	firstOpErrno int32
	haveFirst    bool
	unreachable  map[string]bool // peer UUIDs a fan-out could not reach, for quorum
}

func newTransaction(id, originatorUUID string, op wireops.OperationCode, input wireops.Dict, peers []roster.Peer, savedGeneration int64) *transaction {
	return &transaction{
		ID:              id,
		OriginatorUUID:  originatorUUID,
		Op:              op,
		InputDict:       input,
		SavedGeneration: savedGeneration,
		Peers:           peers,
		ResponseDict:    wireops.NewDict(),
		unreachable:     make(map[string]bool),
	}
}

// mergeReply merges a peer's response dict into the accumulated
// transaction dict, records its error line (if any), and tracks the first
// non-OK (opRet, opErrno) pair to become the transaction's result, per
// spec.md §4.5's aggregation rule.
func (tx *transaction) mergeReply(peer roster.Peer, resp wireops.Response) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	for k, v := range resp.Dict {
		tx.ResponseDict[k] = v
	}
	if resp.Failed() {
		tx.recordFailureLocked(resp.OpRet, resp.OpErrno, peer.Hostname, peer.UUID, resp.ErrStr)
	}
}

// mergeReplyDictOnly merges a peer's response dict without ever recording
// a failure, for phases (Unlock) whose outcome must never affect op_ret.
func (tx *transaction) mergeReplyDictOnly(resp wireops.Response) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for k, v := range resp.Dict {
		tx.ResponseDict[k] = v
	}
}

// recordLocalFailure records a failure attributed to this node's own
// collaborator, with no peer hostname/UUID.
func (tx *transaction) recordLocalFailure(opRet, opErrno int32, errStr string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.recordFailureLocked(opRet, opErrno, "", "", errStr)
}

func (tx *transaction) recordFailureLocked(opRet, opErrno int32, hostname, peerUUID, errStr string) {
	if !tx.haveFirst {
		tx.firstOpRet, tx.firstOpErrno, tx.haveFirst = opRet, opErrno, true
	}
	line := errStr
	if hostname != "" {
		line = hostname + ": " + errStr
	}
	if line != "" {
		tx.errLines = append(tx.errLines, line)
	}
}

// hasFailure reports whether any phase run so far recorded a failure.
// Callers use this immediately after running one phase, so it reads as
// "did this phase fail" given every earlier phase necessarily succeeded
// (the engine would not have reached this phase otherwise).
func (tx *transaction) hasFailure() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.haveFirst
}

// currentOpRet returns the transaction's op_ret as collated so far, for
// handing to post_validate_fn per spec.md §6's signature.
func (tx *transaction) currentOpRet() int32 {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.firstOpRet
}

// markUnreachable records that a fan-out could not deliver to peerUUID at
// all (a transport-level error, not an application-level failure reply).
func (tx *transaction) markUnreachable(peerUUID string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.unreachable[peerUUID] = true
}

// reachableCount returns the number of this transaction's eligible peers
// that have not (yet) been marked unreachable, for the QuorumPolicy gate.
func (tx *transaction) reachableCount() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.Peers) - len(tx.unreachable)
}

// result composes the CLI-visible response, invoked only once every phase
// (including Unlock) has returned, per invariant 6 ("CLI response last").
func (tx *transaction) result() Result {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	errStr := strings.Join(tx.errLines, "\n")
	opRet, opErrno := tx.firstOpRet, tx.firstOpErrno
	if tx.haveFirst && errStr == "" {
		errStr = "transaction failed with no collated error detail"
	}
	return Result{
		OpRet:    opRet,
		OpErrno:  opErrno,
		OpErrStr: errStr,
		Dict:     tx.ResponseDict,
	}
}
