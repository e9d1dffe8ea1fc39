package wireops

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDict_EncodeDecodeRoundTrip(t *testing.T) {
	d := NewDict()
	d["volname"] = "vol0"
	d["count"] = int64(3)
	d["force"] = true

	b, err := d.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestDict_EncodeIsSortedAndDeterministic(t *testing.T) {
	d := Dict{"b": int64(1), "a": int64(2)}
	b1, err := d.Encode()
	require.NoError(t, err)
	b2, err := d.Encode()
	require.NoError(t, err)
	require.Equal(t, b1, b2)
	require.Equal(t, `{"a":2,"b":1}`, string(b1))
}

func TestDict_EncodeEscapesStrings(t *testing.T) {
	d := Dict{"msg": "hello \"world\"\n"}
	b, err := d.Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `\"world\"`)
	require.Contains(t, string(b), `\n`)
}

func TestDict_EncodeRejectsUnsupportedType(t *testing.T) {
	d := Dict{"bad": struct{}{}}
	_, err := d.Encode()
	require.Error(t, err)
}

func TestDict_CloneIsolatesByteSlices(t *testing.T) {
	orig := Dict{"blob": []byte("abc")}
	clone := orig.Clone()

	b := orig["blob"].([]byte)
	b[0] = 'z'

	require.Equal(t, []byte("abc"), clone["blob"])
}

func TestDict_Getters(t *testing.T) {
	d := Dict{"s": "x", "n": int64(5), "b": true}

	s, ok := d.GetString("s")
	require.True(t, ok)
	require.Equal(t, "x", s)

	_, ok = d.GetString("n")
	require.False(t, ok)

	n, ok := d.GetInt64("n")
	require.True(t, ok)
	require.Equal(t, int64(5), n)

	bv, ok := d.GetBool("b")
	require.True(t, ok)
	require.True(t, bv)

	_, ok = d.GetString("missing")
	require.False(t, ok)
}

func TestResponse_Failed(t *testing.T) {
	require.False(t, Response{OpRet: 0}.Failed())
	require.True(t, Response{OpRet: -1}.Failed())
}
