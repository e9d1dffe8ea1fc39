// Package wireops defines the opaque dict-blob payload and the six
// MGMT_V3_* phase messages that cross the transport.Transport interface
// (SPEC_FULL.md §6). The dispatch engine and every collaborator function
// only ever see a Dict; nothing in this package knows about volumes,
// bricks, or any other domain noun — that knowledge lives entirely in the
// collaborator functions the coordinator wires in.
//
// Encode is grounded on the teacher's jsonenc package
// (github.com/joeycumines/go-utilpkg/jsonenc), which provides allocation
// -optimised JSON string/number appenders used by its zerolog-style
// structured encoders; this package reuses the same two primitives
// (AppendString, AppendFloat64) to serialise a Dict to a deterministic,
// sorted-key JSON object, matching the teacher's "append to a growing
// byte slice" style rather than building a tree with encoding/json.
package wireops

import (
	"fmt"
	"sort"
	"strconv"
)

// Phase identifies one of the six management-plane RPC phases. This is
// distinct from a Request's OperationCode: Phase selects which RPC is
// being made (spec.md §6's MGMT_V3_* names), while OperationCode carries
// the user's administrative operation (e.g. "CREATE_SNAPSHOT") that every
// phase of one transaction shares.
type Phase string

const (
	PhaseLock         Phase = "MGMT_V3_LOCK"
	PhasePreValidate  Phase = "MGMT_V3_PRE_VALIDATE"
	PhaseBrickOp      Phase = "MGMT_V3_BRICK_OP"
	PhaseCommit       Phase = "MGMT_V3_COMMIT"
	PhasePostValidate Phase = "MGMT_V3_POST_VALIDATE"
	PhaseUnlock       Phase = "MGMT_V3_UNLOCK"
)

// OperationCode is the closed-vocabulary administrative operation a
// transaction carries out (e.g. "CREATE_SNAPSHOT", "ADD_BRICK"). Unlike
// Phase, the core never interprets its value beyond the one special case
// OpSyncVolume, which relaxes the peer eligibility filter's befriended
// requirement (spec.md §4.5).
type OperationCode string

// OpSyncVolume is the one OperationCode the eligibility filter treats
// specially, per spec.md §4.5 ("unless the operation is the special
// SYNC_VOLUME which relaxes this").
const OpSyncVolume OperationCode = "SYNC_VOLUME"

// BrickOpPhase discriminates the two sub-phases multiplexed onto
// PhaseBrickOp (spec.md §4.5: "brick-op pre" runs between pre-validate and
// commit, "brick-op post" runs between commit and post-validate).
type BrickOpPhase string

const (
	BrickOpPre  BrickOpPhase = "pre"
	BrickOpPost BrickOpPhase = "post"
)

// Dict is the opaque key/value payload exchanged in every phase request and
// response, standing in for glusterd's dict_t. Values are restricted to the
// scalar set a management-plane operation actually needs to carry: strings,
// integers, floats, bools, and raw bytes (e.g. a serialized sub-structure
// a collaborator chooses not to flatten further).
type Dict map[string]any

// NewDict returns an empty, non-nil Dict ready for key assignment.
func NewDict() Dict { return make(Dict) }

// GetString returns the string at key, or ok=false if absent or not a string.
func (d Dict) GetString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt64 returns the int64 at key, or ok=false if absent or not an int64.
func (d Dict) GetInt64(key string) (int64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// GetBool returns the bool at key, or ok=false if absent or not a bool.
func (d Dict) GetBool(key string) (bool, bool) {
	v, ok := d[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Clone returns a shallow copy of d; since every permitted value type is
// itself immutable ([]byte excepted, copied below), this is sufficient to
// isolate a Dict crossing a transport boundary from further mutation by its
// sender.
func (d Dict) Clone() Dict {
	if d == nil {
		return nil
	}
	out := make(Dict, len(d))
	for k, v := range d {
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			v = cp
		}
		out[k] = v
	}
	return out
}

// Encode serializes d to a deterministic (sorted-key) JSON object.
func (d Dict) Encode() ([]byte, error) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dst := make([]byte, 0, 64)
	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendString(dst, k)
		dst = append(dst, ':')
		var err error
		dst, err = appendValue(dst, d[k])
		if err != nil {
			return nil, fmt.Errorf("wireops: encode key %q: %w", k, err)
		}
	}
	dst = append(dst, '}')
	return dst, nil
}

func appendValue(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return AppendString(dst, x), nil
	case int64:
		return strconv.AppendInt(dst, x, 10), nil
	case int:
		return strconv.AppendInt(dst, int64(x), 10), nil
	case float64:
		return AppendFloat64(dst, x), nil
	case bool:
		return strconv.AppendBool(dst, x), nil
	case []byte:
		return AppendString(dst, string(x)), nil
	case nil:
		return append(dst, "null"...), nil
	default:
		return nil, fmt.Errorf("unsupported dict value type %T", v)
	}
}
