package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/types"
)

// GRPCDriver implements Driver over three gRPC-framed bidirectional
// streaming channels, one listener per channel on the coordinator side and
// one dial per channel on the worker side.
type GRPCDriver struct {
	cfg      *config.Config
	identity string
	auth     *Authenticator

	mu     sync.Mutex
	bound  []*channelServer
	dialed []*grpc.ClientConn
}

// NewGRPCDriver builds a driver for the given configuration. identity is
// this process's own name on the wire: a worker's identity when used from a
// worker, or arbitrary (unused for binds) when used from a coordinator.
func NewGRPCDriver(cfg *config.Config, identity string) (*GRPCDriver, error) {
	auth, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, err
	}
	return &GRPCDriver{cfg: cfg, identity: identity, auth: auth}, nil
}

func (d *GRPCDriver) JobBind(ctx context.Context) (ServerChannel, error) {
	return d.bind(d.cfg.JobBindAddr, "job")
}

func (d *GRPCDriver) BackendBind(ctx context.Context) (ServerChannel, error) {
	return d.bind(d.cfg.BackendBindAddr, "backend")
}

func (d *GRPCDriver) HeartbeatBind(ctx context.Context) (ServerChannel, error) {
	return d.bind(d.cfg.HeartbeatBindAddr, "heartbeat")
}

func (d *GRPCDriver) JobConnect(ctx context.Context, identity string) (ClientChannel, error) {
	return d.connect(ctx, d.cfg.JobBindAddr, identity, func(c TransportClient) (FrameClientStream, error) {
		return c.JobChannel(ctx)
	})
}

func (d *GRPCDriver) BackendConnect(ctx context.Context, identity string) (ClientChannel, error) {
	return d.connect(ctx, d.cfg.BackendBindAddr, identity, func(c TransportClient) (FrameClientStream, error) {
		return c.BackendChannel(ctx)
	})
}

func (d *GRPCDriver) HeartbeatConnect(ctx context.Context, identity string) (ClientChannel, error) {
	return d.connect(ctx, d.cfg.HeartbeatBindAddr, identity, func(c TransportClient) (FrameClientStream, error) {
		return c.HeartbeatChannel(ctx)
	})
}

func (d *GRPCDriver) bind(addr, kind string) (ServerChannel, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s (%s): %w", addr, kind, err)
	}

	opts := append(d.auth.ServerOptions(), grpc.ForceServerCodec(jsonCodec{}))
	srv := grpc.NewServer(opts...)
	cs := newChannelServer(kind, srv)
	srv.RegisterService(&ServiceDesc, cs)

	go func() {
		_ = srv.Serve(lis)
	}()

	d.mu.Lock()
	d.bound = append(d.bound, cs)
	d.mu.Unlock()
	return cs, nil
}

func (d *GRPCDriver) connect(ctx context.Context, addr, identity string, open func(TransportClient) (FrameClientStream, error)) (ClientChannel, error) {
	opts := append(d.auth.DialOptions(identity), grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})))
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	client := NewTransportClient(conn)
	stream, err := open(client)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: opening stream to %s: %w", addr, err)
	}

	cc := &clientChannel{conn: conn, stream: stream, identity: identity}
	if err := cc.stream.Send(&types.Frame{Identity: identity, Control: types.ControlReady}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: registering identity with %s: %w", addr, err)
	}

	d.mu.Lock()
	d.dialed = append(d.dialed, conn)
	d.mu.Unlock()
	return cc, nil
}

// Close tears down every bound listener and dialed connection this driver
// created.
func (d *GRPCDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cs := range d.bound {
		_ = cs.Close()
	}
	for _, conn := range d.dialed {
		_ = conn.Close()
	}
	d.bound = nil
	d.dialed = nil
	return nil
}

// channelServer fans in frames from every worker connected to one channel
// and lets the coordinator push a frame back to a specific identity.
type channelServer struct {
	kind string
	srv  *grpc.Server

	mu    sync.Mutex
	conns map[string]FrameServerStream

	incoming chan types.Frame
}

func newChannelServer(kind string, srv *grpc.Server) *channelServer {
	return &channelServer{
		kind:     kind,
		srv:      srv,
		conns:    make(map[string]FrameServerStream),
		incoming: make(chan types.Frame, 256),
	}
}

func (s *channelServer) JobChannel(stream FrameServerStream) error       { return s.handle(stream) }
func (s *channelServer) BackendChannel(stream FrameServerStream) error   { return s.handle(stream) }
func (s *channelServer) HeartbeatChannel(stream FrameServerStream) error { return s.handle(stream) }

func (s *channelServer) handle(stream FrameServerStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Identity == "" {
		return status.Error(codes.InvalidArgument, "first frame on a channel must carry an identity")
	}
	identity := first.Identity

	s.mu.Lock()
	s.conns[identity] = stream
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, identity)
		s.mu.Unlock()
	}()

	for {
		frame := *first
		frame.Identity = identity
		select {
		case s.incoming <- frame:
		case <-stream.Context().Done():
			return stream.Context().Err()
		}

		first, err = stream.Recv()
		if err != nil {
			return err
		}
	}
}

func (s *channelServer) Send(identity string, frame types.Frame) error {
	s.mu.Lock()
	stream, ok := s.conns[identity]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no active %s stream for identity %q", s.kind, identity)
	}
	frame.Identity = ""
	return stream.Send(&frame)
}

func (s *channelServer) Recv(ctx context.Context) (types.Frame, error) {
	select {
	case f := <-s.incoming:
		return f, nil
	case <-ctx.Done():
		return types.Frame{}, ctx.Err()
	}
}

func (s *channelServer) Close() error {
	s.srv.GracefulStop()
	return nil
}

// clientChannel is the worker side of one channel.
type clientChannel struct {
	conn     *grpc.ClientConn
	stream   FrameClientStream
	identity string
}

func (c *clientChannel) Send(_ context.Context, frame types.Frame) error {
	frame.Identity = c.identity
	return c.stream.Send(&frame)
}

func (c *clientChannel) Recv(_ context.Context) (types.Frame, error) {
	f, err := c.stream.Recv()
	if err != nil {
		return types.Frame{}, err
	}
	return *f, nil
}

func (c *clientChannel) Close() error {
	_ = c.stream.CloseSend()
	return c.conn.Close()
}
