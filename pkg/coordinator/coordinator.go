package coordinator

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/docstore"
	"github.com/directord/directord/pkg/transport"
	"github.com/directord/directord/pkg/types"
)

// Coordinator runs the three cooperating server loops described in spec
// §4.3: submission, job dispatch, job result (plus the backend channel's
// transfer/barrier relay and the heartbeat loop).
type Coordinator struct {
	Cfg    *config.Config
	Driver transport.Driver
	Store  docstore.Store
	Log    zerolog.Logger

	jobCh chan types.JobItem

	jobChannel       transport.ServerChannel
	backendChannel   transport.ServerChannel
	heartbeatChannel transport.ServerChannel

	listener net.Listener

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator builds a Coordinator. Call Start to bind its channels and
// launch its loops.
func NewCoordinator(cfg *config.Config, driver transport.Driver, store docstore.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		Cfg:    cfg,
		Driver: driver,
		Store:  store,
		Log:    log,
		jobCh:  make(chan types.JobItem, 256),
		stopCh: make(chan struct{}),
	}
}

// Start binds the job, backend and heartbeat channels plus the local
// management socket, and launches every coordinator loop.
func (co *Coordinator) Start(ctx context.Context) error {
	jobChannel, err := co.Driver.JobBind(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: binding job channel: %w", err)
	}
	co.jobChannel = jobChannel

	backendChannel, err := co.Driver.BackendBind(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: binding backend channel: %w", err)
	}
	co.backendChannel = backendChannel

	heartbeatChannel, err := co.Driver.HeartbeatBind(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: binding heartbeat channel: %w", err)
	}
	co.heartbeatChannel = heartbeatChannel

	listener, err := net.Listen("unix", co.Cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("coordinator: listening on %s: %w", co.Cfg.SocketPath, err)
	}
	co.listener = listener

	co.wg.Add(5)
	go co.submissionLoop(ctx)
	go co.dispatchLoop(ctx)
	go co.resultLoop(ctx)
	go co.backendLoop(ctx)
	go co.heartbeatLoop(ctx)

	co.Log.Info().Str("socket", co.Cfg.SocketPath).Msg("coordinator started")
	return nil
}

// Stop signals every loop to exit, waits for them, and closes the bound
// channels and socket.
func (co *Coordinator) Stop() error {
	close(co.stopCh)
	if co.listener != nil {
		_ = co.listener.Close()
	}
	co.wg.Wait()

	if co.jobChannel != nil {
		_ = co.jobChannel.Close()
	}
	if co.backendChannel != nil {
		_ = co.backendChannel.Close()
	}
	if co.heartbeatChannel != nil {
		_ = co.heartbeatChannel.Close()
	}
	return nil
}
