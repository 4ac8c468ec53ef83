package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/directord/directord/pkg/types"
)

// heartbeatPayload mirrors the worker's wire payload (pkg/worker's
// heartbeatPayload); duplicated here rather than imported since pkg/worker
// cannot be a dependency of pkg/coordinator and the shape is small.
type heartbeatPayload struct {
	Version     string `json:"version"`
	HostUptime  string `json:"host_uptime"`
	AgentUptime string `json:"agent_uptime"`
	MachineID   string `json:"machine_id"`
}

// heartbeatLoop receives READY/NOTICE frames from workers and, on a
// separate ticker, prunes workers whose liveness has lapsed and probes the
// rest with a refreshed expiry, per spec §4.3's heartbeat loop.
func (co *Coordinator) heartbeatLoop(ctx context.Context) {
	defer co.wg.Done()

	co.wg.Add(1)
	go co.heartbeatRecvLoop(ctx)

	interval := co.Cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-co.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			co.pruneAndProbe(interval)
		}
	}
}

func (co *Coordinator) heartbeatRecvLoop(ctx context.Context) {
	defer co.wg.Done()

	for {
		select {
		case <-co.stopCh:
			return
		default:
		}

		frame, err := co.heartbeatChannel.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case <-co.stopCh:
				return
			default:
			}
			co.Log.Warn().Err(err).Msg("heartbeat channel receive error")
			continue
		}

		if frame.Control == types.ControlReady || frame.Control == types.ControlNotice {
			co.touchWorker(frame)
		}
	}
}

func (co *Coordinator) touchWorker(frame types.Frame) {
	liveness := co.Cfg.HeartbeatLiveness
	if liveness <= 0 {
		liveness = 3
	}
	interval := co.Cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var payload heartbeatPayload
	_ = json.Unmarshal(frame.Data, &payload)

	record := &types.WorkerRecord{
		Identity:    frame.Identity,
		Expiry:      time.Now().Add(time.Duration(liveness) * interval),
		Version:     payload.Version,
		HostUptime:  payload.HostUptime,
		AgentUptime: payload.AgentUptime,
		MachineID:   payload.MachineID,
	}
	if err := co.Store.PutWorker(record); err != nil {
		co.Log.Error().Err(err).Str("identity", frame.Identity).Msg("persisting worker record")
	}
}

// pruneAndProbe removes workers whose expiry has elapsed by more than one
// heartbeat interval, and nudges the rest with a refreshed-expiry NOTICE.
func (co *Coordinator) pruneAndProbe(interval time.Duration) {
	workers, err := co.Store.ListWorkers()
	if err != nil {
		co.Log.Error().Err(err).Msg("listing workers for prune")
		return
	}

	now := time.Now()
	for _, w := range workers {
		if now.Sub(w.Expiry) > interval {
			co.Log.Info().Str("identity", w.Identity).Msg("pruning expired worker")
			_ = co.Store.DeleteWorker(w.Identity)
			continue
		}
		if err := co.heartbeatChannel.Send(w.Identity, types.Frame{Control: types.ControlNotice}); err != nil {
			co.Log.Debug().Err(err).Str("identity", w.Identity).Msg("probing idle worker")
		}
	}
}
