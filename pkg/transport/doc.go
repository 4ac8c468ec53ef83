// Package transport implements the three channels (job, backend, heartbeat)
// that coordinator and worker processes exchange Frame values over.
//
// The wire format is a hand-written JSON encoding.Codec forced onto
// google.golang.org/grpc via grpc.ForceServerCodec/grpc.ForceCodec, and the
// service itself is a hand-written grpc.ServiceDesc rather than
// protoc-generated stubs: three independent bidirectional-streaming RPCs,
// one per channel, each carrying Frame messages in both directions. This
// keeps genuine use of gRPC's framing, multiplexing, flow control and TLS
// machinery while avoiding a protoc code-generation step.
package transport
