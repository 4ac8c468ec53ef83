package components

import (
	"context"
	"fmt"

	"github.com/directord/directord/pkg/types"
)

// ArgComponent merges key/value pairs into the worker's cached args
// dictionary (ARG) or, when isEnv is set, additionally merges them into the
// cache's envs namespace (ENV), which RUN applies as its subprocess
// environment. ARG and ENV share every other behavior, matching the
// original's "ENV and ARG are aliases" comment.
type ArgComponent struct {
	verb  string
	isEnv bool
}

func (c *ArgComponent) Verb() string      { return c.verb }
func (c *ArgComponent) Cacheable() bool   { return false }
func (c *ArgComponent) RequiresLock() bool { return true }

func (c *ArgComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	values, ok := job.Args["values"].(map[string]interface{})
	if !ok || len(values) == 0 {
		return Result{}, fmt.Errorf("components: %s job %s requires values", c.Verb(), job.JobID)
	}
	extend, _ := job.Args["extend_args"].(bool)

	if err := mergeArgs(ec.Cache, values, extend); err != nil {
		return Result{}, err
	}

	if c.isEnv {
		envValues := make(map[string]interface{}, len(values))
		for k, v := range values {
			envValues[k] = fmt.Sprintf("%v", v)
		}
		if err := mergeEnvs(ec.Cache, envValues); err != nil {
			return Result{}, fmt.Errorf("components: ENV job %s: %w", job.JobID, err)
		}
	}

	return Result{Success: true, Info: []byte(fmt.Sprintf("set %d argument(s)", len(values)))}, nil
}
