// Package grpcclient implements transport.Transport over real
// google.golang.org/grpc connections: one node's coordinator calls
// another's over the network, using a hand-registered grpc.ServiceDesc
// instead of protoc-generated stubs (SPEC_FULL.md scopes RPC transport
// internals out of the core; the wire shape below is this package's own
// business, not the dispatch engine's).
//
// ContextDialer is carried over from the teacher's grpc-proxy package
// (github.com/joeycumines/go-utilpkg/grpc-proxy/proxy), which wraps a
// raw TCP dialer with context-respecting cancellation and timeout
// composition for its reverse-proxying grpc.ClientConn pool; this package
// dials outbound peer connections the same way.
package grpcclient

import (
	"context"
	"net"
	"time"
)

// ContextDialer is for use with grpc.WithContextDialer.
type ContextDialer func(ctx context.Context, addr string) (net.Conn, error)

var dialer net.Dialer

// DialTCP is a convenience ContextDialer for use with DialWithCancel.
func DialTCP(ctx context.Context, addr string) (net.Conn, error) {
	if ctx == nil {
		panic("grpcclient: DialTCP called with nil context")
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

var _ ContextDialer = DialTCP

// DialWithCancel wraps d so that it also fails fast if ctx is cancelled,
// independent of the per-call context passed into the returned dialer.
func DialWithCancel(ctx context.Context, d ContextDialer) ContextDialer {
	if ctx == nil {
		panic("grpcclient: DialWithCancel called with nil context")
	}
	if d == nil {
		panic("grpcclient: DialWithCancel called with nil dialer")
	}
	return func(ctx2 context.Context, addr string) (net.Conn, error) {
		if ctx2.Err() != nil {
			return nil, ctx2.Err()
		}
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		ctx2, cancel := context.WithCancel(ctx2)
		defer cancel()
		defer context.AfterFunc(ctx, cancel)()
		return d(ctx2, addr)
	}
}

// DialWithTimeout wraps d with a fixed per-dial timeout.
func DialWithTimeout(timeout time.Duration, d ContextDialer) ContextDialer {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return d(ctx, addr)
	}
}
