package barrier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/types"
)

// QueryWaitTimeout bounds how long QUERY_WAIT polls before reporting the
// identities still missing an answer.
const QueryWaitTimeout = 5 * time.Minute

// QueryWaitComponent is the QUERY_WAIT verb. Unlike JOB_WAIT it needs no
// peer cooperation: it only polls the worker's own cache, since QUERY
// answers are already fanned out into every live worker's args["query"]
// sub-map by the coordinator before QUERY_WAIT ever runs.
type QueryWaitComponent struct{}

func (c *QueryWaitComponent) Verb() string      { return "QUERY_WAIT" }
func (c *QueryWaitComponent) Cacheable() bool   { return false }
func (c *QueryWaitComponent) RequiresLock() bool { return false }

func (c *QueryWaitComponent) Execute(ctx context.Context, ec *components.ExecContext, job types.JobItem) (components.Result, error) {
	key, _ := job.Args["key"].(string)
	if key == "" {
		return components.Result{}, fmt.Errorf("barrier: QUERY_WAIT job %s requires key", job.JobID)
	}
	var identities []string
	if raw, ok := job.Args["identities"].([]interface{}); ok {
		for _, v := range raw {
			identities = append(identities, fmt.Sprintf("%v", v))
		}
	}

	deadline := time.Now().Add(QueryWaitTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		missing, err := c.missingIdentities(ec, key, identities)
		if err != nil {
			return components.Result{}, err
		}
		if len(missing) == 0 {
			return components.Result{Success: true, Info: []byte(fmt.Sprintf("%s present for every identity", key))}, nil
		}
		if time.Now().After(deadline) {
			return components.Result{}, fmt.Errorf("barrier: QUERY_WAIT job %s timed out waiting on %s for %v", job.JobID, key, missing)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return components.Result{}, ctx.Err()
		}
	}
}

// missingIdentities returns which of identities still lack an answer for
// key under args["query"], or nil once every named identity has one. With
// no identities named, it waits for key to appear anywhere under
// args["query"].
func (c *QueryWaitComponent) missingIdentities(ec *components.ExecContext, key string, identities []string) ([]string, error) {
	entry, ok, err := ec.Cache.Get("args")
	if err != nil {
		return nil, fmt.Errorf("barrier: reading cached args: %w", err)
	}
	if !ok {
		return identities, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal(entry.Value, &args); err != nil {
		return nil, fmt.Errorf("barrier: decoding cached args: %w", err)
	}

	query, _ := args["query"].(map[string]interface{})
	if len(identities) == 0 {
		for _, v := range query {
			if sub, ok := v.(map[string]interface{}); ok {
				if _, ok := sub[key]; ok {
					return nil, nil
				}
			}
		}
		return []string{"(any)"}, nil
	}

	var missing []string
	for _, identity := range identities {
		sub, ok := query[identity].(map[string]interface{})
		if !ok {
			missing = append(missing, identity)
			continue
		}
		if _, ok := sub[key]; !ok {
			missing = append(missing, identity)
		}
	}
	return missing, nil
}
