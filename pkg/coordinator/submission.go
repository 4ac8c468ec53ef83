package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/directord/directord/pkg/types"
)

// manageRequest is the shape of a management command submitted on the
// local socket: {"manage": "list-jobs"|"list-nodes"|"purge-jobs"|"purge-nodes"}.
type manageRequest struct {
	Manage string `json:"manage"`
}

// submissionLoop accepts one JSON object per connection on the local
// management socket and dispatches it as either a management command or a
// job submission.
func (co *Coordinator) submissionLoop(ctx context.Context) {
	defer co.wg.Done()

	for {
		conn, err := co.listener.Accept()
		if err != nil {
			select {
			case <-co.stopCh:
				return
			default:
			}
			co.Log.Warn().Err(err).Msg("submission socket accept error")
			continue
		}
		go co.handleSubmission(ctx, conn)
	}
}

func (co *Coordinator) handleSubmission(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	raw := json.RawMessage{}
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		co.Log.Warn().Err(err).Msg("submission decode error")
		return
	}

	var manage manageRequest
	if err := json.Unmarshal(raw, &manage); err == nil && manage.Manage != "" {
		co.handleManage(conn, manage.Manage)
		return
	}

	var job types.JobItem
	if err := json.Unmarshal(raw, &job); err != nil {
		co.reply(conn, false, fmt.Sprintf("invalid job submission: %v", err))
		return
	}
	co.handleJobSubmission(ctx, conn, job)
}

func (co *Coordinator) handleManage(conn net.Conn, command string) {
	enc := json.NewEncoder(conn)
	switch command {
	case "list-jobs":
		jobs, err := co.Store.ListJobs()
		if err != nil {
			co.reply(conn, false, err.Error())
			return
		}
		_ = enc.Encode(jobs)
	case "list-nodes":
		workers, err := co.Store.ListWorkers()
		if err != nil {
			co.reply(conn, false, err.Error())
			return
		}
		_ = enc.Encode(workers)
	case "purge-jobs":
		jobs, err := co.Store.ListJobs()
		if err != nil {
			co.reply(conn, false, err.Error())
			return
		}
		for _, job := range jobs {
			_ = co.Store.DeleteJob(job.JobID)
		}
		co.reply(conn, true, fmt.Sprintf("purged %d job(s)", len(jobs)))
	case "purge-nodes":
		workers, err := co.Store.ListWorkers()
		if err != nil {
			co.reply(conn, false, err.Error())
			return
		}
		for _, worker := range workers {
			_ = co.Store.DeleteWorker(worker.Identity)
		}
		co.reply(conn, true, fmt.Sprintf("purged %d node(s)", len(workers)))
	default:
		co.reply(conn, false, fmt.Sprintf("unknown manage command %q", command))
	}
}

func (co *Coordinator) handleJobSubmission(ctx context.Context, conn net.Conn, job types.JobItem) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.ParentID == "" {
		job.ParentID = job.JobID
	}

	fingerprint, err := types.Fingerprint(job)
	if err != nil {
		co.reply(conn, false, fmt.Sprintf("fingerprinting job: %v", err))
		return
	}
	job.JobSHA3224 = fingerprint

	if len(job.Restrict) > 0 && !contains(job.Restrict, fingerprint) {
		co.Log.Warn().Str("job_id", job.JobID).Str("fingerprint", fingerprint).Msg("dropping submission not in restrict set")
		co.reply(conn, false, "submission fingerprint not in restrict set")
		return
	}

	select {
	case co.jobCh <- job:
	case <-ctx.Done():
		co.reply(conn, false, "coordinator shutting down")
		return
	}

	if job.ReturnRaw {
		_, _ = conn.Write([]byte(job.JobID))
		return
	}
	co.reply(conn, true, fmt.Sprintf("job %s accepted", job.JobID))
}

func (co *Coordinator) reply(conn net.Conn, ok bool, message string) {
	payload, err := json.Marshal(map[string]interface{}{"success": ok, "message": message})
	if err != nil {
		return
	}
	_, _ = conn.Write(payload)
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
