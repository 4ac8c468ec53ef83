package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/directord/directord/pkg/types"
)

// ServiceName is the gRPC service name Transport registers under.
const ServiceName = "directord.transport.Transport"

// FrameServerStream is the server-side handle for one bidirectional Frame
// stream, analogous to what protoc-gen-go-grpc would emit for a
// `stream Frame returns (stream Frame)` RPC.
type FrameServerStream interface {
	grpc.ServerStream
	Send(*types.Frame) error
	Recv() (*types.Frame, error)
}

// FrameClientStream is the client-side counterpart of FrameServerStream.
type FrameClientStream interface {
	grpc.ClientStream
	Send(*types.Frame) error
	Recv() (*types.Frame, error)
}

type frameServerStream struct {
	grpc.ServerStream
}

func (x *frameServerStream) Send(f *types.Frame) error {
	return x.ServerStream.SendMsg(f)
}

func (x *frameServerStream) Recv() (*types.Frame, error) {
	f := new(types.Frame)
	if err := x.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

type frameClientStream struct {
	grpc.ClientStream
}

func (x *frameClientStream) Send(f *types.Frame) error {
	return x.ClientStream.SendMsg(f)
}

func (x *frameClientStream) Recv() (*types.Frame, error) {
	f := new(types.Frame)
	if err := x.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

// TransportServer is implemented by whatever drives the coordinator side of
// the three channels.
type TransportServer interface {
	JobChannel(FrameServerStream) error
	BackendChannel(FrameServerStream) error
	HeartbeatChannel(FrameServerStream) error
}

func _Transport_JobChannel_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TransportServer).JobChannel(&frameServerStream{stream})
}

func _Transport_BackendChannel_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TransportServer).BackendChannel(&frameServerStream{stream})
}

func _Transport_HeartbeatChannel_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TransportServer).HeartbeatChannel(&frameServerStream{stream})
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would generate for a service with three bidi-streaming Frame RPCs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransportServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "JobChannel",
			Handler:       _Transport_JobChannel_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "BackendChannel",
			Handler:       _Transport_BackendChannel_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "HeartbeatChannel",
			Handler:       _Transport_HeartbeatChannel_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "directord/transport.proto",
}

// TransportClient is the hand-written client stub matching ServiceDesc.
type TransportClient interface {
	JobChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error)
	BackendChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error)
	HeartbeatChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error)
}

type transportClient struct {
	cc grpc.ClientConnInterface
}

// NewTransportClient wraps a ClientConn in the Transport client stub.
func NewTransportClient(cc grpc.ClientConnInterface) TransportClient {
	return &transportClient{cc: cc}
}

func (c *transportClient) JobChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error) {
	return c.openStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/JobChannel", opts...)
}

func (c *transportClient) BackendChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error) {
	return c.openStream(ctx, &ServiceDesc.Streams[1], "/"+ServiceName+"/BackendChannel", opts...)
}

func (c *transportClient) HeartbeatChannel(ctx context.Context, opts ...grpc.CallOption) (FrameClientStream, error) {
	return c.openStream(ctx, &ServiceDesc.Streams[2], "/"+ServiceName+"/HeartbeatChannel", opts...)
}

func (c *transportClient) openStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (FrameClientStream, error) {
	stream, err := c.cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	return &frameClientStream{stream}, nil
}
