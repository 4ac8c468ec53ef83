package components

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/directord/directord/pkg/types"
)

// ServiceComponent starts, stops, restarts, or enables a systemd unit. Like
// DNF, this is a thin adapter around shelling out, with the same retry
// semantics.
type ServiceComponent struct{}

func (c *ServiceComponent) Verb() string      { return "SERVICE" }
func (c *ServiceComponent) Cacheable() bool   { return true }
func (c *ServiceComponent) RequiresLock() bool { return false }

func (c *ServiceComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	name, _ := job.Args["name"].(string)
	if name == "" {
		return Result{}, fmt.Errorf("components: SERVICE job %s requires name", job.JobID)
	}
	action, _ := job.Args["action"].(string)
	if action == "" {
		action = "restart"
	}

	retry := intArg(job.Args, "retry", 1)
	retryWait := durationArg(job.Args, "retry_wait", time.Second)

	var stdout, stderr bytes.Buffer
	var runErr error
	for attempt := 0; attempt <= retry; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
			stdout.Reset()
			stderr.Reset()
		}
		cmd := exec.CommandContext(ctx, "systemctl", action, name)
		cmd.Dir = ec.WorkDir()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if runErr = cmd.Run(); runErr == nil {
			break
		}
	}

	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Success: runErr == nil}
	if runErr != nil {
		return result, fmt.Errorf("components: SERVICE job %s %s %s: %w", job.JobID, action, name, runErr)
	}
	return result, nil
}
