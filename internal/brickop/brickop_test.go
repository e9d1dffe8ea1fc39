package brickop

import (
	"context"
	"testing"

	"github.com/joeycumines/clustermgmt/internal/wireops"
	"github.com/stretchr/testify/require"
)

func TestStatic_RegisterAndLookup(t *testing.T) {
	s := NewStatic(nil)
	_, ok := s.Translator("/bricks/b1")
	require.False(t, ok)

	var called bool
	s.Register("/bricks/b1", TranslatorFunc(func(ctx context.Context, phase wireops.BrickOpPhase, op wireops.OperationCode, dict wireops.Dict) error {
		called = true
		return nil
	}))

	tr, ok := s.Translator("/bricks/b1")
	require.True(t, ok)
	require.NoError(t, tr.Execute(context.Background(), wireops.BrickOpPre, "CREATE_SNAPSHOT", nil))
	require.True(t, called)
}

func TestNewStatic_SeedsFromMap(t *testing.T) {
	tr := TranslatorFunc(func(ctx context.Context, phase wireops.BrickOpPhase, op wireops.OperationCode, dict wireops.Dict) error {
		return nil
	})
	s := NewStatic(map[string]Translator{"/bricks/b1": tr})
	got, ok := s.Translator("/bricks/b1")
	require.True(t, ok)
	require.NotNil(t, got)
}

func TestErrBrickUnknown_Error(t *testing.T) {
	err := ErrBrickUnknown{BrickPath: "/bricks/b9"}
	require.Contains(t, err.Error(), "/bricks/b9")
}
