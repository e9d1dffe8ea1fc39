package volstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()

	_, ok, err := r.Get(ctx, "vol0")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Put(ctx, "vol0", []byte("metadata")))
	got, ok, err := r.Get(ctx, "vol0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("metadata"), got)

	require.NoError(t, r.Delete(ctx, "vol0"))
	_, ok, err = r.Get(ctx, "vol0")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInMemory_PutRejectsEmptyName(t *testing.T) {
	r := NewInMemory()
	require.Error(t, r.Put(context.Background(), "", []byte("x")))
}

func TestInMemory_GetIsolatesCallerMutation(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()
	require.NoError(t, r.Put(ctx, "vol0", []byte("abc")))

	got, _, err := r.Get(ctx, "vol0")
	require.NoError(t, err)
	got[0] = 'z'

	got2, _, err := r.Get(ctx, "vol0")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got2)
}
