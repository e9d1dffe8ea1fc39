// Package inproc implements transport.Transport entirely in-process: every
// "peer" is really a Handler registered on a shared Network. It exists
// for tests and single-node development, where dialling real gRPC
// connections between simulated peers would be pure overhead.
//
// The Network registry is grounded on the teacher's inprocgrpc package
// (its handlerMap: a sync.RWMutex-guarded map, written once at
// registration time, read on every call). Because both sides of an
// in-process call share the same address space, a request/response Dict
// handed across the boundary must be isolated from further mutation by
// its sender or receiver — inprocgrpc solves the equivalent problem for
// proto.Message values with its Cloner/ProtoCloner pair; this package's
// equivalent is wireops.Dict.Clone, since a Dict's scalar value set never
// needs proto's Merge/Reset semantics.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// Network is a shared in-process registry of peer handlers, the inproc
// analogue of a real RPC listener set. Every node under test registers its
// Handler once; Transport instances bound to this Network can then reach
// any registered peer by UUID.
type Network struct {
	mu    sync.RWMutex
	peers map[string]transport.Handler
}

// NewNetwork constructs an empty Network.
func NewNetwork() *Network { return &Network{peers: make(map[string]transport.Handler)} }

// Register binds peerUUID's Handler into the network. Panics if peerUUID
// is already registered, matching inprocgrpc's registerService's
// already-registered panic: this is a programming error, not a runtime
// condition callers should recover from.
func (n *Network) Register(peerUUID string, h transport.Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.peers[peerUUID]; ok {
		panic(fmt.Sprintf("inproc: peer %q already registered", peerUUID))
	}
	n.peers[peerUUID] = h
}

// Deregister removes peerUUID, e.g. to simulate a peer going offline.
func (n *Network) Deregister(peerUUID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, peerUUID)
}

func (n *Network) lookup(peerUUID string) (transport.Handler, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	h, ok := n.peers[peerUUID]
	return h, ok
}

// ErrPeerUnreachable is returned by Transport.Send when peerUUID is not
// registered on the Network.
type ErrPeerUnreachable struct{ PeerUUID string }

func (e ErrPeerUnreachable) Error() string {
	return fmt.Sprintf("inproc: peer %q unreachable", e.PeerUUID)
}

// Transport is a transport.Transport backed by a Network.
type Transport struct {
	net *Network
}

// NewTransport constructs a Transport bound to net.
func NewTransport(net *Network) *Transport { return &Transport{net: net} }

// Send clones req's Dict before handing it to the target Handler, and
// clones the Handler's response Dict before returning it, so neither side
// observes the other's subsequent mutations — the in-process equivalent of
// the copy a real network call would force implicitly.
func (t *Transport) Send(ctx context.Context, peerUUID string, req wireops.Request) (wireops.Response, error) {
	h, ok := t.net.lookup(peerUUID)
	if !ok {
		return wireops.Response{}, ErrPeerUnreachable{PeerUUID: peerUUID}
	}

	isolated := req
	isolated.Dict = req.Dict.Clone()

	resp, err := h.Handle(ctx, isolated)
	if err != nil {
		return wireops.Response{}, err
	}
	resp.Dict = resp.Dict.Clone()
	return resp, nil
}
