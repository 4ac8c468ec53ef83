package components

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/directord/directord/pkg/types"
)

// FactComponent gathers local facts and merges them into the cached args
// dictionary the same way ARG does. With no external facter-style binary
// configured, it reports a small built-in fact set; when "binary" is given
// it shells out and expects JSON on stdout.
type FactComponent struct{}

func (c *FactComponent) Verb() string      { return "FACT" }
func (c *FactComponent) Cacheable() bool   { return false }
func (c *FactComponent) RequiresLock() bool { return true }

func (c *FactComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	facts, err := c.gather(ctx, job)
	if err != nil {
		return Result{}, err
	}

	prefix, _ := job.Args["prefix"].(string)
	if prefix != "" {
		prefixed := make(map[string]interface{}, len(facts))
		for k, v := range facts {
			prefixed[prefix+"_"+k] = v
		}
		facts = prefixed
	}

	if err := mergeArgs(ec.Cache, facts, true); err != nil {
		return Result{}, err
	}

	info, _ := json.Marshal(facts)
	return Result{Success: true, Info: info}, nil
}

func (c *FactComponent) gather(ctx context.Context, job types.JobItem) (map[string]interface{}, error) {
	binary, _ := job.Args["binary"].(string)
	if binary == "" {
		hostname, _ := os.Hostname()
		return map[string]interface{}{
			"os":       runtime.GOOS,
			"arch":     runtime.GOARCH,
			"hostname": hostname,
		}, nil
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, binary)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("components: FACT job %s running %s: %w", job.JobID, binary, err)
	}

	var facts map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &facts); err != nil {
		return nil, fmt.Errorf("components: FACT job %s parsing %s output: %w", job.JobID, binary, err)
	}
	return facts, nil
}
