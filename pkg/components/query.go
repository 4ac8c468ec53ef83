package components

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/directord/directord/pkg/types"
)

// QueryComponent looks up a key in the worker's own args cache and returns
// it as the job's payload. The coordinator re-broadcasts a non-null answer
// to every live worker as a synthetic ARG job targeting the "query"
// sub-namespace, so every worker eventually learns every other's answer.
type QueryComponent struct{}

func (c *QueryComponent) Verb() string      { return "QUERY" }
func (c *QueryComponent) Cacheable() bool   { return false }
func (c *QueryComponent) RequiresLock() bool { return false }

func (c *QueryComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	key, _ := job.Args["key"].(string)
	if key == "" {
		return Result{}, fmt.Errorf("components: QUERY job %s requires key", job.JobID)
	}

	args, err := cachedArgs(ec.Cache)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(map[string]interface{}{key: args[key]})
	if err != nil {
		return Result{}, fmt.Errorf("components: QUERY job %s marshaling answer: %w", job.JobID, err)
	}

	return Result{Success: true, Info: payload}, nil
}
