package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/wireops"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_MarshalUnmarshalRoundTrip(t *testing.T) {
	c := jsonCodec{}
	require.Equal(t, codecName, c.Name())

	req := wireops.Request{Phase: wireops.PhaseLock, TransactionID: "tx-1", Dict: wireops.Dict{"k": "v"}}
	data, err := c.Marshal(&req)
	require.NoError(t, err)

	var got wireops.Request
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, req.Phase, got.Phase)
	require.Equal(t, req.TransactionID, got.TransactionID)
}

func TestTransport_SendOverRealListener(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	srv := grpc.NewServer()
	RegisterServer(srv, transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		return wireops.Response{Phase: req.Phase, PeerUUID: "peer-1", OpRet: 0, Dict: req.Dict.Clone()}, nil
	}))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	addr := lis.Addr().String()
	tr := NewTransport(func(peerUUID string) (string, error) { return addr, nil })
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := tr.Send(ctx, "peer-1", wireops.Request{Phase: wireops.PhaseLock, Dict: wireops.Dict{"volname": "vol0"}})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	require.Equal(t, "peer-1", resp.PeerUUID)
	vol, ok := resp.Dict.GetString("volname")
	require.True(t, ok)
	require.Equal(t, "vol0", vol)
}

func TestTransport_ResolveError(t *testing.T) {
	tr := NewTransport(func(peerUUID string) (string, error) { return "", errUnresolvable{} })
	_, err := tr.Send(context.Background(), "ghost", wireops.Request{})
	require.Error(t, err)
}

type errUnresolvable struct{}

func (errUnresolvable) Error() string { return "no address known for peer" }
