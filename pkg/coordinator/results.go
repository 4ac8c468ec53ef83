package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/directord/directord/pkg/types"
)

// resultLoop receives worker frames on the job channel and updates the
// corresponding JobRecord according to spec §4.3's control-byte table. It
// polls with the same 128ms/1024ms/2048ms idle ramp as the worker's own
// job loop: tight while results are arriving, relaxed when the fleet is
// quiet.
func (co *Coordinator) resultLoop(ctx context.Context) {
	defer co.wg.Done()

	lastActive := time.Time{}
	for {
		select {
		case <-co.stopCh:
			return
		default:
		}

		recvCtx, cancel := context.WithTimeout(ctx, idleInterval(lastActive))
		frame, err := co.jobChannel.Recv(recvCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			select {
			case <-co.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			co.Log.Warn().Err(err).Msg("job channel receive error")
			continue
		}

		lastActive = time.Now()
		co.applyResult(frame)
	}
}

func idleInterval(lastActive time.Time) time.Duration {
	if lastActive.IsZero() {
		return 128 * time.Millisecond
	}
	since := time.Since(lastActive)
	switch {
	case since > 64*time.Second:
		return 2048 * time.Millisecond
	case since > 32*time.Second:
		return 1024 * time.Millisecond
	default:
		return 128 * time.Millisecond
	}
}

func (co *Coordinator) applyResult(frame types.Frame) {
	jobID := frame.Command
	record, ok, err := co.Store.GetJob(jobID)
	if err != nil || !ok {
		co.Log.Warn().Str("job_id", jobID).Str("identity", frame.Identity).Msg("result frame for unknown job")
		return
	}

	now := time.Now()
	switch frame.Control {
	case types.ControlJobAck:
		if record.CreateTime.IsZero() {
			record.CreateTime = now
		}
		if len(frame.Info) > 0 {
			record.Info[frame.Identity] = string(frame.Info)
		}

	case types.ControlJobProcessing:
		if record.StartTime.IsZero() {
			record.StartTime = now
		}
		record.Processing = true

	case types.ControlJobEnd, types.ControlNull, types.ControlJobFailed:
		record.Stdout[frame.Identity] = string(frame.Stdout)
		record.Stderr[frame.Identity] = string(frame.Stderr)
		if len(frame.Info) > 0 {
			record.Info[frame.Identity] = string(frame.Info)
		}
		if !record.StartTime.IsZero() {
			record.ExecutionTime[frame.Identity] = now.Sub(record.StartTime).Seconds()
		}
		if !record.CreateTime.IsZero() {
			record.TotalRoundtripTime[frame.Identity] = now.Sub(record.CreateTime).Seconds()
		}
		if frame.Control == types.ControlJobFailed {
			record.Failed = append(record.Failed, frame.Identity)
		} else {
			record.Success = append(record.Success, frame.Identity)
			if string(frame.Data) == "QUERY" && len(frame.Info) > 0 {
				co.fanoutQuery(frame.Identity, frame.Info)
			}
		}
	}

	if err := co.Store.PutJob(record); err != nil {
		co.Log.Error().Err(err).Str("job_id", jobID).Msg("persisting job record")
	}
}

// decodeAnswer parses the single-key map a QUERY component's Info carries:
// {queried-key: value}.
func decodeAnswer(info []byte) (map[string]interface{}, error) {
	var answer map[string]interface{}
	if err := json.Unmarshal(info, &answer); err != nil {
		return nil, err
	}
	return answer, nil
}
