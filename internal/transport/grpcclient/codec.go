package grpcclient

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a gRPC content-subtype, so both client and
// server (via encoding.RegisterCodec, which is a process-wide registration)
// agree on how to marshal wireops.Request/Response without a protoc-
// generated message type. Grounded on the teacher's inprocgrpc.ProtoCloner,
// which falls back to exactly this lookup-by-name codec mechanism
// (encoding.GetCodecV2(grpcproto.Name)) for non-proto.Message values; this
// package registers its own name instead of reusing "proto", since its
// payload types were never proto messages to begin with.
const codecName = "clustermgmtjson"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }
