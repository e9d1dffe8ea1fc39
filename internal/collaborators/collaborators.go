// Package collaborators declares the four opaque per-operation callbacks
// the dispatch engine invokes locally at the same point it dispatches the
// corresponding peer RPC (spec.md §6). None of these are implemented here
// beyond trivial test doubles: the real callbacks belong to the
// surrounding system (volume creation logic, snapshot mechanics, etc.),
// explicitly out of scope per spec.md §1.
package collaborators

import (
	"context"

	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// PreValidateFunc runs the pre-validate phase's local check for one operation.
type PreValidateFunc func(ctx context.Context, op wireops.OperationCode, dict wireops.Dict) (ok bool, errStr string, errno int32)

// BrickOpFunc runs the brick-op phase's local action (pre or post sub-phase
// is carried on the request's BrickOpPhase field, not this signature).
type BrickOpFunc func(ctx context.Context, op wireops.OperationCode, dict wireops.Dict) (ok bool, errStr string)

// CommitFunc runs the commit phase's local action.
type CommitFunc func(ctx context.Context, op wireops.OperationCode, dict wireops.Dict) (ok bool, errStr string, errno int32)

// PostValidateFunc runs the post-validate phase's local check, told whether
// the transaction's overall result (opRet) was success.
type PostValidateFunc func(ctx context.Context, op wireops.OperationCode, opRet int32, dict wireops.Dict) (ok bool, errStr string)

// Set bundles the four collaborator callbacks a dispatch engine needs.
// Any nil field is treated as an always-succeeding no-op, matching a
// command that has nothing to validate or commit locally for a given phase.
type Set struct {
	PreValidate  PreValidateFunc
	BrickOp      BrickOpFunc
	Commit       CommitFunc
	PostValidate PostValidateFunc
}
