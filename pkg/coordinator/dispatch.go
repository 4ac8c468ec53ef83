package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/directord/directord/pkg/types"
)

// dispatchLoop dequeues submitted jobs and dispatches them to their
// resolved targets, per spec §4.3's job dispatch loop.
func (co *Coordinator) dispatchLoop(ctx context.Context) {
	defer co.wg.Done()

	for {
		select {
		case <-co.stopCh:
			return
		case <-ctx.Done():
			return
		case job := <-co.jobCh:
			co.dispatch(ctx, job)
		}
	}
}

func (co *Coordinator) dispatch(ctx context.Context, job types.JobItem) {
	targets, err := co.resolveTargets(job)
	if err != nil {
		co.Log.Warn().Err(err).Str("job_id", job.JobID).Msg("dropping job with no resolvable target")
		return
	}

	record, ok, err := co.Store.GetJob(job.JobID)
	if err != nil {
		co.Log.Error().Err(err).Str("job_id", job.JobID).Msg("reading job record")
		return
	}
	if !ok {
		record = types.NewJobRecord(job)
	}
	record.Accepted = true
	record.Nodes = targets
	if err := co.Store.PutJob(record); err != nil {
		co.Log.Error().Err(err).Str("job_id", job.JobID).Msg("persisting job record")
		return
	}

	// Fingerprinted once here, outside any goroutine, so the concurrent
	// fan-out below only reads job state and never races on job.Args.
	jobs := fingerprintedJobs(job)

	// QUERY and broad targets lists can fan out to the whole live worker
	// set; send frames concurrently rather than serializing one gRPC call
	// per worker behind the next.
	var g errgroup.Group
	for _, target := range targets {
		target := target
		g.Go(func() error {
			co.dispatchToTarget(ctx, target, jobs)
			return nil
		})
	}
	_ = g.Wait()
}

// resolveTargets implements spec §4.3's target resolution: QUERY always
// fans out to every live worker; an explicit targets list is intersected
// with live workers; run_once truncates the result to one worker.
func (co *Coordinator) resolveTargets(job types.JobItem) ([]string, error) {
	live, err := co.liveWorkers()
	if err != nil {
		return nil, err
	}

	var targets []string
	switch {
	case job.Verb == "QUERY":
		targets = live
	case len(job.Targets) > 0:
		liveSet := make(map[string]struct{}, len(live))
		for _, identity := range live {
			liveSet[identity] = struct{}{}
		}
		for _, want := range job.Targets {
			if _, ok := liveSet[want]; ok {
				targets = append(targets, want)
			}
		}
	default:
		targets = live
	}

	if job.RunOnce && len(targets) > 1 {
		targets = targets[:1]
	}
	return targets, nil
}

func (co *Coordinator) liveWorkers() ([]string, error) {
	workers, err := co.Store.ListWorkers()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	live := make([]string, 0, len(workers))
	for _, w := range workers {
		if w.Live(now) {
			live = append(live, w.Identity)
		}
	}
	return live, nil
}

// dispatchToTarget sends one or more dispatch frames for job to identity.
// jobs carries the COPY/ADD fan-out (already split per-file and
// fingerprinted once, before any per-target concurrency) or, for every
// other verb, the single unmodified job.
func (co *Coordinator) dispatchToTarget(ctx context.Context, identity string, jobs []types.JobItem) {
	for _, job := range jobs {
		co.sendJobFrame(ctx, identity, job)
	}
}

// fingerprintedJobs expands job into the frames dispatchToTarget should
// send: COPY/ADD jobs carrying a "files" list become one job per file, each
// with file_to/file_sha3_224 precomputed from the coordinator's own
// filesystem; everything else is returned unchanged. Computing this once,
// before targets fan out concurrently, avoids mutating a job.Args map
// shared across goroutines and re-hashing the same source file once per
// target.
func fingerprintedJobs(job types.JobItem) []types.JobItem {
	if job.Verb != "COPY" && job.Verb != "ADD" {
		return []types.JobItem{job}
	}

	files, ok := job.Args["files"].([]interface{})
	if !ok || len(files) == 0 {
		return []types.JobItem{withFileFingerprint(job)}
	}

	jobs := make([]types.JobItem, 0, len(files))
	for _, raw := range files {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		fileJob := job
		fileJob.Args = map[string]interface{}{
			"from": entry["from"],
			"to":   entry["to"],
		}
		jobs = append(jobs, withFileFingerprint(fileJob))
	}
	return jobs
}

// withFileFingerprint returns a copy of job with file_to/file_sha3_224 set
// from the coordinator's own read of its source file. job.Args is copied
// before mutation so the caller's map is never written through.
func withFileFingerprint(job types.JobItem) types.JobItem {
	from, _ := job.Args["from"].(string)
	to, _ := job.Args["to"].(string)
	if from == "" {
		return job
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return job
	}

	args := make(map[string]interface{}, len(job.Args)+2)
	for k, v := range job.Args {
		args[k] = v
	}
	args["file_to"] = to
	args["file_sha3_224"] = types.FingerprintBytes(data)
	job.Args = args
	return job
}

func (co *Coordinator) sendJobFrame(ctx context.Context, identity string, job types.JobItem) {
	data, err := json.Marshal(job)
	if err != nil {
		co.Log.Error().Err(err).Str("job_id", job.JobID).Msg("encoding job frame")
		return
	}
	frame := types.Frame{Control: types.ControlJobProcessing, Command: job.JobID, Data: data}
	if err := co.jobChannel.Send(identity, frame); err != nil {
		co.Log.Warn().Err(err).Str("identity", identity).Str("job_id", job.JobID).Msg("dispatching job frame")
	}
}
