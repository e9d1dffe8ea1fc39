// Package coordinator defines the ordinal error taxonomy shared by every
// phase of a dispatch (SPEC_FULL.md §7).
//
// Code is the one place SPEC_FULL.md deliberately stays on the standard
// library's errors package rather than reaching for a third-party error
// library: none of the teacher's or pack's packages pull in anything
// beyond errors.Is/errors.As (see DESIGN.md), and spec.md §7's taxonomy is
// a small closed ordinal set for which the standard wrapping idiom is a
// complete fit.
package coordinator

import "fmt"

// Code is the closed ordinal taxonomy of spec.md §7.
type Code int

const (
	// CodeTransport: RPC status was failure; treated as ENOTCONN.
	CodeTransport Code = iota + 1
	// CodeDecode: payload decode failure; treated as a malformed request.
	CodeDecode
	// CodeAnotherTransaction: lock already held by another UUID.
	CodeAnotherTransaction
	// CodeLockOwnerMismatch: release attempted by a non-owner (diagnostic only).
	CodeLockOwnerMismatch
	// CodeStaleGeneration: peer excluded by the generation filter. Not
	// surfaced as a user-visible error; skipped silently per spec.md §7.
	CodeStaleGeneration
	// CodeLocalPhaseFailure: the originator node's own callback rejected the phase.
	CodeLocalPhaseFailure
	// CodePeerPhaseFailure: a peer's callback rejected the phase; surfaced verbatim.
	CodePeerPhaseFailure
	// CodeInternal: catch-all, mapped to a non-zero op_errno.
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeTransport:
		return "Transport"
	case CodeDecode:
		return "Decode"
	case CodeAnotherTransaction:
		return "AnotherTransaction"
	case CodeLockOwnerMismatch:
		return "LockOwnerMismatch"
	case CodeStaleGeneration:
		return "StaleGeneration"
	case CodeLocalPhaseFailure:
		return "LocalPhaseFailure"
	case CodePeerPhaseFailure:
		return "PeerPhaseFailure"
	case CodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is a coordinator-taxonomy error, wrapping an optional underlying
// cause and carrying the peer hostname/UUID it concerns, when known.
type Error struct {
	Code     Code
	PeerUUID string
	Hostname string
	Err      error
}

func (e *Error) Error() string {
	if e.PeerUUID != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: peer=%s(%s): %v", e.Code, e.Hostname, e.PeerUUID, e.Err)
		}
		return fmt.Sprintf("%s: peer=%s(%s)", e.Code, e.Hostname, e.PeerUUID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, &coordinator.Error{Code: X}) by comparing Code
// alone, so callers can test for a taxonomy class without needing an
// identical PeerUUID/Hostname/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an *Error of the given code, optionally wrapping cause.
func New(code Code, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// NewPeerError constructs an *Error attributed to a specific peer, per
// SPEC_FULL.md's supplemented feature of including the peer hostname
// (grounded on glusterd-mgmt.c's gd_op_brick_rsp_ctx) alongside its UUID.
func NewPeerError(code Code, peerUUID, hostname string, cause error) *Error {
	return &Error{Code: code, PeerUUID: peerUUID, Hostname: hostname, Err: cause}
}
