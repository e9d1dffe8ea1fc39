package coordinator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesOnCodeOnly(t *testing.T) {
	err := NewPeerError(CodeAnotherTransaction, "u1", "hostA", errors.New("boom"))
	require.True(t, errors.Is(err, New(CodeAnotherTransaction, nil)))
	require.False(t, errors.Is(err, New(CodeInternal, nil)))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := New(CodeTransport, cause)
	require.ErrorIs(t, err, cause)
}

func TestError_MessageIncludesPeer(t *testing.T) {
	err := NewPeerError(CodePeerPhaseFailure, "u2", "hostB", errors.New("rejected"))
	require.Contains(t, err.Error(), "hostB")
	require.Contains(t, err.Error(), "u2")
	require.Contains(t, err.Error(), "rejected")
}

func TestCode_String(t *testing.T) {
	require.Equal(t, "Internal", CodeInternal.String())
	require.Contains(t, Code(99).String(), "99")
}
