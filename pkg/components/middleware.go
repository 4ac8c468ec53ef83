package components

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/directord/directord/pkg/types"
)

// Execute runs comp against job with the timeout and cacheargs decorators
// applied, mirroring the original runtime's per-verb decorator stack. It
// returns the component's result, any follow-on jobs (from the stdout_arg/
// stderr_arg side effect and the QUERY_WAIT barrier of queryWaitFollowOn),
// and an error.
func Execute(ctx context.Context, comp Component, ec *ExecContext, job types.JobItem) (Result, []types.JobItem, error) {
	timeout := job.EffectiveTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := comp.Execute(runCtx, ec, job)
	if runCtx.Err() == context.DeadlineExceeded {
		ec.Log.Warn().Str("verb", comp.Verb()).Dur("timeout", timeout).Msg("job timed out")
		return result, nil, fmt.Errorf("components: %s job %s timed out after %s", comp.Verb(), job.JobID, timeout)
	}

	followOns := cacheArgsFollowOn(ec.Identity, job, result)
	followOns = append(followOns, queryWaitFollowOn(ec.Identity, job, result)...)
	return result, followOns, err
}

// queryWaitFollowOn pushes a QUERY_WAIT barrier job when the executing
// worker named itself among a QUERY job's targets, so the worker blocks
// until the coordinator has rebroadcast its own answer back to it.
func queryWaitFollowOn(identity string, job types.JobItem, result Result) []types.JobItem {
	if job.Verb != "QUERY" || !result.Success {
		return nil
	}
	key, _ := job.Args["key"].(string)
	if key == "" {
		return nil
	}

	selfTargeted := false
	for _, target := range job.Targets {
		if target == identity {
			selfTargeted = true
			break
		}
	}
	if !selfTargeted {
		return nil
	}

	followOn := types.JobItem{
		JobID:             uuid.NewString(),
		ParentID:          uuid.NewString(),
		Verb:              "QUERY_WAIT",
		SkipCache:         true,
		ParentAsyncBypass: true,
		Targets:           []string{identity},
		Args: map[string]interface{}{
			"key":        key,
			"identities": []interface{}{identity},
		},
	}
	fingerprint, err := types.Fingerprint(followOn)
	if err == nil {
		followOn.JobSHA3224 = fingerprint
		followOn.ParentSHA3224 = fingerprint
	}
	return []types.JobItem{followOn}
}

// cacheArgsFollowOn builds a synthetic ARG job carrying a RUN/DNF/SERVICE
// job's captured stdout/stderr into the worker's own cached args, matching
// the original's cacheargs decorator.
func cacheArgsFollowOn(identity string, job types.JobItem, result Result) []types.JobItem {
	stdoutArg, _ := job.Args["stdout_arg"].(string)
	stderrArg, _ := job.Args["stderr_arg"].(string)
	if stdoutArg == "" && stderrArg == "" {
		return nil
	}

	values := make(map[string]interface{})
	if stdoutArg != "" {
		values[stdoutArg] = string(result.Stdout)
	}
	if stderrArg != "" {
		values[stderrArg] = string(result.Stderr)
	}

	followOn := types.JobItem{
		JobID:             uuid.NewString(),
		ParentID:          uuid.NewString(),
		Verb:              "ARG",
		SkipCache:         true,
		ParentAsyncBypass: true,
		Targets:           []string{identity},
		Args: map[string]interface{}{
			"values":      values,
			"extend_args": true,
		},
	}
	fingerprint, err := types.Fingerprint(followOn)
	if err == nil {
		followOn.JobSHA3224 = fingerprint
		followOn.ParentSHA3224 = fingerprint
	}
	return []types.JobItem{followOn}
}
