package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/directord/directord/pkg/types"
)

// heartbeatPayload is the JSON body of a NOTICE frame, reporting the facts
// the coordinator's WorkerRecord tracks beyond bare liveness.
type heartbeatPayload struct {
	Version     string `json:"version"`
	HostUptime  string `json:"host_uptime"`
	AgentUptime string `json:"agent_uptime"`
	MachineID   string `json:"machine_id"`
}

// Version is the worker agent's reported build version.
const Version = "1.0.0"

// maxHeartbeatMisses is how many consecutive send failures the heartbeat
// loop tolerates before tearing down and reconnecting the channel.
const maxHeartbeatMisses = 5

// heartbeatLoop sends NOTICE frames on the configured interval and, after
// more than maxHeartbeatMisses consecutive failures, tears down and
// reconnects the heartbeat channel with exponential backoff from 2s up to
// 32s, per spec.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()

	startedAt := time.Now()
	interval := w.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := w.buildHeartbeatPayload(startedAt)
			data, err := json.Marshal(payload)
			if err != nil {
				w.Log.Warn().Err(err).Msg("encoding heartbeat payload")
				continue
			}
			if err := w.heartbeat.Send(ctx, types.Frame{Control: types.ControlNotice, Data: data}); err != nil {
				misses++
				w.Log.Warn().Err(err).Int("misses", misses).Msg("heartbeat send failed")
				if misses > maxHeartbeatMisses {
					if err := w.reconnectHeartbeat(ctx); err != nil {
						w.Log.Error().Err(err).Msg("heartbeat channel reconnect failed")
						continue
					}
					misses = 0
				}
				continue
			}
			misses = 0

			frame, err := w.heartbeat.Recv(ctx)
			if err == nil && frame.Control == types.ControlNotice && frame.Command == "reset" {
				if err := w.reconnectHeartbeat(ctx); err != nil {
					w.Log.Error().Err(err).Msg("heartbeat reset reconnect failed")
				}
			}
		}
	}
}

func (w *Worker) buildHeartbeatPayload(startedAt time.Time) heartbeatPayload {
	payload := heartbeatPayload{
		Version:     Version,
		AgentUptime: time.Since(startedAt).String(),
	}
	if info, err := host.Info(); err == nil {
		payload.HostUptime = (time.Duration(info.Uptime) * time.Second).String()
		payload.MachineID = info.HostID
	}
	return payload
}

// reconnectHeartbeat tears down and re-dials the heartbeat channel, backing
// off from 2s to a 32s cap between attempts.
func (w *Worker) reconnectHeartbeat(ctx context.Context) error {
	if w.heartbeat != nil {
		_ = w.heartbeat.Close()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 32 * time.Second

	for {
		channel, err := w.driver.HeartbeatConnect(ctx, w.Identity)
		if err == nil {
			w.heartbeat = channel
			return nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return errors.New("worker: heartbeat reconnect backoff exhausted")
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return errors.New("worker: stopped during heartbeat reconnect")
		}
	}
}
