package inproc

import (
	"context"
	"testing"

	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/wireops"
	"github.com/stretchr/testify/require"
)

func TestTransport_SendRoundTrip(t *testing.T) {
	net := NewNetwork()
	net.Register("peer-1", transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		require.Equal(t, wireops.PhaseLock, req.Phase)
		v, _ := req.Dict.GetString("volname")
		return wireops.Response{
			Phase:    req.Phase,
			PeerUUID: "peer-1",
			OpRet:    0,
			Dict:     wireops.Dict{"echo": v},
		}, nil
	}))

	tr := NewTransport(net)
	resp, err := tr.Send(context.Background(), "peer-1", wireops.Request{
		Phase: wireops.PhaseLock,
		Dict:  wireops.Dict{"volname": "vol0"},
	})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	echo, ok := resp.Dict.GetString("echo")
	require.True(t, ok)
	require.Equal(t, "vol0", echo)
}

func TestTransport_SendUnreachablePeer(t *testing.T) {
	tr := NewTransport(NewNetwork())
	_, err := tr.Send(context.Background(), "ghost", wireops.Request{})
	require.ErrorAs(t, err, &ErrPeerUnreachable{})
}

func TestTransport_SendIsolatesDictMutation(t *testing.T) {
	net := NewNetwork()
	var captured wireops.Dict
	net.Register("peer-1", transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		captured = req.Dict
		return wireops.Response{Dict: wireops.Dict{}}, nil
	}))

	tr := NewTransport(net)
	sent := wireops.Dict{"k": "v"}
	_, err := tr.Send(context.Background(), "peer-1", wireops.Request{Dict: sent})
	require.NoError(t, err)

	sent["k"] = "mutated"
	v, _ := captured.GetString("k")
	require.Equal(t, "v", v, "handler's copy must not observe sender's post-send mutation")
}

func TestNetwork_RegisterPanicsOnDuplicate(t *testing.T) {
	net := NewNetwork()
	h := transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		return wireops.Response{}, nil
	})
	net.Register("p", h)
	require.Panics(t, func() { net.Register("p", h) })
}

func TestNetwork_Deregister(t *testing.T) {
	net := NewNetwork()
	net.Register("p", transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		return wireops.Response{}, nil
	}))
	net.Deregister("p")

	tr := NewTransport(net)
	_, err := tr.Send(context.Background(), "p", wireops.Request{})
	require.Error(t, err)
}
