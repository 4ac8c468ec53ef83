package components

import (
	"context"
	"fmt"

	"github.com/directord/directord/pkg/types"
)

// CacheEvictComponent drops every cache entry carrying a given tag (or the
// entire cache when the tag is "all" or no tag is supplied), the worker-side counterpart to a
// coordinator-issued cache reset.
type CacheEvictComponent struct{}

func (c *CacheEvictComponent) Verb() string      { return "CACHEEVICT" }
func (c *CacheEvictComponent) Cacheable() bool   { return false }
func (c *CacheEvictComponent) RequiresLock() bool { return false }

func (c *CacheEvictComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	tag, _ := job.Args["tag"].(string)
	if tag == "" || tag == "all" {
		if err := ec.Cache.Clear(); err != nil {
			return Result{}, fmt.Errorf("components: CACHEEVICT job %s clearing cache: %w", job.JobID, err)
		}
		return Result{Success: true, Info: []byte("cache cleared")}, nil
	}

	n, err := ec.Cache.Evict(tag)
	if err != nil {
		return Result{}, fmt.Errorf("components: CACHEEVICT job %s evicting tag %s: %w", job.JobID, tag, err)
	}
	return Result{Success: true, Info: []byte(fmt.Sprintf("evicted %d entr(y/ies) tagged %s", n, tag))}, nil
}
