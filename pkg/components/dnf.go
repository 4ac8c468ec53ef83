package components

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/directord/directord/pkg/types"
)

// DNFComponent installs, updates, or removes packages via dnf/yum. It is a
// thin adapter: pass the package names through as given (not rendered),
// shell out, retry on failure.
type DNFComponent struct{}

func (c *DNFComponent) Verb() string      { return "DNF" }
func (c *DNFComponent) Cacheable() bool   { return true }
func (c *DNFComponent) RequiresLock() bool { return false }

func (c *DNFComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	action, _ := job.Args["action"].(string)
	if action == "" {
		action = "install"
	}
	packages, _ := job.Args["packages"].([]interface{})
	if len(packages) == 0 {
		return Result{}, fmt.Errorf("components: DNF job %s requires packages", job.JobID)
	}

	names := make([]string, 0, len(packages))
	for _, p := range packages {
		names = append(names, fmt.Sprintf("%v", p))
	}

	binary := "dnf"
	if b, ok := job.Args["binary"].(string); ok && b != "" {
		binary = b
	}

	args := append([]string{"-y", action}, names...)
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
		cmd := exec.CommandContext(ctx, binary, args...)
		cmd.Dir = ec.WorkDir()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if runErr = cmd.Run(); runErr == nil {
			break
		}
	}

	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Success: runErr == nil}
	if runErr != nil {
		return result, fmt.Errorf("components: DNF job %s %s %v: %w", job.JobID, action, names, runErr)
	}
	return result, nil
}
