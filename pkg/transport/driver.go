package transport

import (
	"context"

	"github.com/directord/directord/pkg/types"
)

// ServerChannel is the coordinator side of one channel: it can push a frame
// to a specific connected worker by identity, and fans in frames received
// from every connected worker into a single Recv stream.
type ServerChannel interface {
	Send(identity string, frame types.Frame) error
	Recv(ctx context.Context) (types.Frame, error)
	Close() error
}

// ClientChannel is the worker side of one channel: a single logical
// connection to the coordinator.
type ClientChannel interface {
	Send(ctx context.Context, frame types.Frame) error
	Recv(ctx context.Context) (types.Frame, error)
	Close() error
}

// Driver binds and connects the job, backend and heartbeat channels. A
// coordinator binds all three; a worker connects to all three. This mirrors
// the abstract bind/connect surface of a transport driver, generalized
// across whatever concrete substrate implements it.
type Driver interface {
	JobBind(ctx context.Context) (ServerChannel, error)
	JobConnect(ctx context.Context, identity string) (ClientChannel, error)

	BackendBind(ctx context.Context) (ServerChannel, error)
	BackendConnect(ctx context.Context, identity string) (ClientChannel, error)

	HeartbeatBind(ctx context.Context) (ServerChannel, error)
	HeartbeatConnect(ctx context.Context, identity string) (ClientChannel, error)

	Close() error
}
