package components

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/types"
)

// Result is what a component returns for one job execution: the three
// output streams the coordinator aggregates into a JobRecord, plus whether
// execution counts as success for JOB_END vs JOB_FAILED purposes.
type Result struct {
	Stdout  []byte
	Stderr  []byte
	Info    []byte
	Success bool
}

// Transferer pulls file content from the coordinator over the backend
// channel, implemented by pkg/worker and injected here so components stay
// independent of the transport package.
type Transferer interface {
	Pull(ctx context.Context, remotePath string) ([]byte, string, error)
}

// ExecContext carries the state a component needs beyond the job itself:
// the worker's local cache (for idempotence checks and ARG/FACT merges),
// its current working directory (mutated by WORKDIR), and a logger scoped
// to this job.
type ExecContext struct {
	Cache    cache.Cache
	Log      zerolog.Logger
	Identity string
	Transfer Transferer

	mu      sync.Mutex
	workdir string
}

// WorkDir returns the current working directory jobs execute in.
func (ec *ExecContext) WorkDir() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.workdir
}

// SetWorkDir updates the working directory for subsequent jobs on this
// worker. Only the WORKDIR component calls this.
func (ec *ExecContext) SetWorkDir(dir string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.workdir = dir
}

// Component implements one verb's worker-side execution.
type Component interface {
	// Verb is the job's "verb" field this component handles (RUN, COPY, ...).
	Verb() string
	// Cacheable reports whether a successful execution's fingerprint should
	// be recorded so a later identical job can be skipped.
	Cacheable() bool
	// RequiresLock reports whether this verb must hold the worker's
	// component-wide execution lock (ARG/ENV do, since two concurrent
	// mutations of cache.args would race).
	RequiresLock() bool
	// Execute runs the job and returns its result.
	Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error)
}
