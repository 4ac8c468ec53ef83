package components

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/directord/directord/pkg/types"
)

// CacheFileComponent loads a YAML document from the worker's filesystem and
// merges its top-level keys into the cached args dictionary, the file-based
// counterpart to ARG's inline values.
type CacheFileComponent struct{}

func (c *CacheFileComponent) Verb() string      { return "CACHEFILE" }
func (c *CacheFileComponent) Cacheable() bool   { return false }
func (c *CacheFileComponent) RequiresLock() bool { return true }

func (c *CacheFileComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	path, _ := job.Args["file"].(string)
	if path == "" {
		return Result{}, fmt.Errorf("components: CACHEFILE job %s requires file", job.JobID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("components: CACHEFILE job %s reading %s: %w", job.JobID, path, err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return Result{}, fmt.Errorf("components: CACHEFILE job %s parsing %s: %w", job.JobID, path, err)
	}

	if err := mergeArgs(ec.Cache, values, false); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Info: []byte(fmt.Sprintf("loaded %d key(s) from %s", len(values), path))}, nil
}
