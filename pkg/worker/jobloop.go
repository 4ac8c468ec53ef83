package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/types"
)

// jobLoop is the worker's main receive loop: it reads dispatched JobItems
// off the job channel, executes them, and reports terminal state back.
// Between receives it backs off per spec: 128ms when recently active, 1024ms
// after 32s of quiet, 2048ms after 64s.
func (w *Worker) jobLoop(ctx context.Context) {
	defer w.wg.Done()

	var lastActive time.Time
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		recvCtx, cancel := context.WithTimeout(ctx, idleInterval(lastActive))
		frame, err := w.job.Recv(recvCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			select {
			case <-w.stopCh:
				return
			default:
			}
			w.Log.Warn().Err(err).Msg("job channel receive error")
			continue
		}
		if frame.Control != types.ControlJobProcessing {
			continue
		}

		var job types.JobItem
		if err := json.Unmarshal(frame.Data, &job); err != nil {
			w.Log.Warn().Err(err).Msg("job frame with unparsable payload")
			continue
		}
		lastActive = time.Now()

		_ = w.job.Send(ctx, types.Frame{Control: types.ControlJobAck, Command: job.JobID})
		w.processJob(ctx, job)
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

// processJob runs one JobItem through the parent-failure check, fingerprint
// idempotence check, component lookup/lock/timeout execution, and persists
// the terminal control, matching the original's job-loop decision sequence.
func (w *Worker) processJob(ctx context.Context, job types.JobItem) {
	if job.ParentID != "" {
		if w.parentFailed(job.ParentID) && !job.ParentAsyncBypass {
			w.reportTerminal(ctx, job, types.ControlJobFailed, nil, []byte("was not allowed to run"))
			return
		}
		if _, ok, _ := w.Cache.Get(cache.ParentStateKey(job.ParentID)); !ok {
			_ = w.Cache.Set(cache.Entry{
				Key:       cache.ParentStateKey(job.ParentID),
				Value:     []byte("true"),
				Expiry:    time.Now().Add(24 * time.Hour),
				Birthtime: time.Now(),
			})
		}
	}

	comp, err := w.Registry.Get(job.Verb)
	if err != nil {
		w.reportTerminal(ctx, job, types.ControlJobFailed, nil, []byte(err.Error()))
		return
	}

	if comp.Cacheable() && !job.SkipCache && job.JobSHA3224 != "" {
		if entry, ok, _ := w.Cache.Get(cache.JobStateKey(job.JobSHA3224)); ok && types.TerminalState(entry.Value) == types.TerminalEnd {
			w.reportTerminal(ctx, job, types.ControlJobEnd, nil, []byte("job skipped"))
			return
		}
	}

	if comp.RequiresLock() {
		w.lockMu.Lock()
	}
	result, followOns, err := components.Execute(ctx, comp, w.execCtx, job)
	if comp.RequiresLock() {
		w.lockMu.Unlock()
	}

	control := types.ControlJobEnd
	if err != nil || !result.Success {
		control = types.ControlJobFailed
	}

	if job.JobSHA3224 != "" {
		terminal := types.TerminalEnd
		if control == types.ControlJobFailed {
			terminal = types.TerminalFailed
		}
		_ = w.Cache.Set(cache.Entry{
			Key:       cache.JobStateKey(job.JobSHA3224),
			Value:     []byte(terminal),
			Birthtime: time.Now(),
		})
	}

	if control == types.ControlJobFailed && job.ParentID != "" && !job.ParentAsyncBypass {
		_ = w.Cache.Set(cache.Entry{
			Key:       cache.ParentStateKey(job.ParentID),
			Value:     []byte("failed"),
			Expiry:    time.Now().Add(24 * time.Hour),
			Birthtime: time.Now(),
		})
	}

	info := result.Info
	if err != nil && len(info) == 0 {
		info = []byte(err.Error())
	}
	w.reportResult(ctx, job, control, result, info)

	for _, follow := range followOns {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.processJob(ctx, follow)
	}
}

func (w *Worker) parentFailed(parentID string) bool {
	entry, ok, err := w.Cache.Get(cache.ParentStateKey(parentID))
	if err != nil || !ok {
		return false
	}
	return string(entry.Value) == "failed"
}

func (w *Worker) reportTerminal(ctx context.Context, job types.JobItem, control types.Control, stdout, info []byte) {
	w.reportResult(ctx, job, control, components.Result{Stdout: stdout, Info: info}, info)
}

func (w *Worker) reportResult(ctx context.Context, job types.JobItem, control types.Control, result components.Result, info []byte) {
	err := w.job.Send(ctx, types.Frame{
		Control: control,
		Command: job.JobID,
		Data:    []byte(job.Verb),
		Info:    info,
		Stdout:  result.Stdout,
		Stderr:  result.Stderr,
	})
	if err != nil {
		w.Log.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to report job result")
	}
}
