package components

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/directord/directord/pkg/types"
)

// RunComponent executes an arbitrary shell command, templated against the
// worker's cached args, the most basic and most used verb.
type RunComponent struct{}

func (c *RunComponent) Verb() string      { return "RUN" }
func (c *RunComponent) Cacheable() bool   { return true }
func (c *RunComponent) RequiresLock() bool { return false }

func (c *RunComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	raw, _ := job.Args["command"].(string)
	if raw == "" {
		return Result{}, fmt.Errorf("components: RUN job %s missing command", job.JobID)
	}

	args, err := cachedArgs(ec.Cache)
	if err != nil {
		return Result{}, err
	}
	command, err := render(raw, args)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = ec.WorkDir()

	envs, err := cachedEnvs(ec.Cache)
	if err != nil {
		return Result{}, err
	}
	if len(envs) > 0 {
		env := make([]string, 0, len(envs))
		for k, v := range envs {
			env = append(env, fmt.Sprintf("%s=%v", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := Result{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Success: runErr == nil,
	}

	if stdoutArg, ok := job.Args["stdout_arg"].(string); ok && stdoutArg != "" && runErr == nil {
		if err := mergeArgs(ec.Cache, map[string]interface{}{stdoutArg: stdout.String()}, false); err != nil {
			return result, err
		}
	}

	if runErr != nil {
		return result, fmt.Errorf("components: RUN job %s: %w", job.JobID, runErr)
	}
	return result, nil
}
