package components

import (
	"context"
	"fmt"
	"os"

	"github.com/directord/directord/pkg/types"
)

// WorkdirComponent switches the worker's execution directory for every
// subsequent job, creating it first if necessary.
type WorkdirComponent struct{}

func (c *WorkdirComponent) Verb() string      { return "WORKDIR" }
func (c *WorkdirComponent) Cacheable() bool   { return false }
func (c *WorkdirComponent) RequiresLock() bool { return true }

func (c *WorkdirComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	path, _ := job.Args["path"].(string)
	if path == "" {
		return Result{}, fmt.Errorf("components: WORKDIR job %s requires path", job.JobID)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{}, fmt.Errorf("components: WORKDIR job %s creating %s: %w", job.JobID, path, err)
	}

	ec.SetWorkDir(path)
	return Result{Success: true, Info: []byte(fmt.Sprintf("working directory set to %s", path))}, nil
}
