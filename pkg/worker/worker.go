package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/directord/directord/pkg/barrier"
	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/transport"
)

// Worker connects to one coordinator and executes the jobs it dispatches.
// It owns its local cache, a component registry, and one client channel per
// wire channel (job, backend, heartbeat).
type Worker struct {
	Identity string
	Cache    cache.Cache
	Registry *components.Registry
	Log      zerolog.Logger

	cfg    *config.Config
	driver transport.Driver

	job       transport.ClientChannel
	backend   transport.ClientChannel
	heartbeat transport.ClientChannel

	execCtx *components.ExecContext

	lockMu sync.Mutex // held by components.RequiresLock() verbs (ARG/ENV)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker builds a worker identified by identity, wiring its ExecContext
// (cache + log + self-identity), but does not connect to the coordinator
// yet; call Start for that, which also installs the backend-channel-backed
// Transferer for COPY/ADD.
func NewWorker(cfg *config.Config, identity string, driver transport.Driver, c cache.Cache, registry *components.Registry, log zerolog.Logger) *Worker {
	w := &Worker{
		Identity: identity,
		Cache:    c,
		Registry: registry,
		Log:      log,
		cfg:      cfg,
		driver:   driver,
		stopCh:   make(chan struct{}),
	}
	w.execCtx = &components.ExecContext{
		Cache:    c,
		Log:      log,
		Identity: identity,
	}
	return w
}

// Start connects the three channels and launches the job-processing,
// backend-coordination, and heartbeat loops.
func (w *Worker) Start(ctx context.Context) error {
	job, err := w.driver.JobConnect(ctx, w.Identity)
	if err != nil {
		return fmt.Errorf("worker: connecting job channel: %w", err)
	}
	w.job = job

	backend, err := w.driver.BackendConnect(ctx, w.Identity)
	if err != nil {
		return fmt.Errorf("worker: connecting backend channel: %w", err)
	}
	w.backend = backend
	w.execCtx.Transfer = &backendTransferer{driver: w.driver, identity: w.Identity}

	heartbeatChan, err := w.driver.HeartbeatConnect(ctx, w.Identity)
	if err != nil {
		return fmt.Errorf("worker: connecting heartbeat channel: %w", err)
	}
	w.heartbeat = heartbeatChan

	w.Registry.Register(&barrier.JobWaitComponent{Opener: w})
	w.Registry.Register(&barrier.QueryWaitComponent{})

	w.wg.Add(3)
	go w.jobLoop(ctx)
	go w.backendLoop(ctx)
	go w.heartbeatLoop(ctx)

	w.Log.Info().Str("identity", w.Identity).Msg("worker started")
	return nil
}

// Stop signals every loop to exit and closes all three channels.
func (w *Worker) Stop() error {
	close(w.stopCh)
	w.wg.Wait()

	var firstErr error
	for _, ch := range []transport.ClientChannel{w.job, w.backend, w.heartbeat} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open implements barrier.EphemeralOpener by dialing a fresh backend
// connection scoped to one JOB_WAIT barrier.
func (w *Worker) Open(ctx context.Context) (transport.ClientChannel, error) {
	return w.driver.BackendConnect(ctx, w.Identity)
}

