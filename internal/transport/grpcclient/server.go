package grpcclient

import (
	"context"

	"google.golang.org/grpc"

	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// serviceDesc is a hand-written grpc.ServiceDesc standing in for what
// protoc-gen-go-grpc would otherwise generate from a .proto file; since
// SPEC_FULL.md scopes RPC wire-format codegen out of this repo, the single
// Dispatch method below is registered directly against transport.Handler.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "clustermgmt.Coordinator",
	HandlerType: (*transport.Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Metadata: "clustermgmt/coordinator.proto",
}

// RegisterServer attaches h to s as the clustermgmt.Coordinator service.
func RegisterServer(s *grpc.Server, h transport.Handler) {
	s.RegisterService(&serviceDesc, h)
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wireops.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(transport.Handler)

	if interceptor == nil {
		resp, err := h.Handle(ctx, *in)
		return &resp, err
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		resp, err := h.Handle(ctx, *req.(*wireops.Request))
		return &resp, err
	}
	return interceptor(ctx, in, info, handler)
}
