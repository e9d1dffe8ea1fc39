// Package transport defines the RPC boundary the dispatch engine fans out
// across: SPEC_FULL.md §1 scopes RPC transport internals out of this
// repo's core, so the engine depends only on the Transport interface
// below. internal/transport/inproc provides a same-process implementation
// for tests and single-node development; internal/transport/grpcclient
// provides the production implementation over a real network.
package transport

import (
	"context"

	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// Transport sends a single phase request to one peer and returns its
// response, or an error if the request could not be delivered at all (a
// delivered request that the peer rejected comes back as a Response with a
// non-zero OpRet, not an error).
type Transport interface {
	Send(ctx context.Context, peerUUID string, req wireops.Request) (wireops.Response, error)
}

// Handler is the server side of a Transport: it executes a phase request
// against this node's own collaborators and returns the result. Both
// transport/inproc and transport/grpcclient's server component dispatch
// incoming requests to a Handler.
type Handler interface {
	Handle(ctx context.Context, req wireops.Request) (wireops.Response, error)
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func(ctx context.Context, req wireops.Request) (wireops.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req wireops.Request) (wireops.Response, error) {
	return f(ctx, req)
}
