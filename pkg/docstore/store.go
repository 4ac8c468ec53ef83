package docstore

import "github.com/directord/directord/pkg/types"

// Store persists JobRecord and WorkerRecord documents. The coordinator's
// in-memory dicts in the original implementation are the default backend
// (pkg/docstore/memory.go); attaching an external store (pkg/docstore/
// redis.go) lets job/worker bookkeeping survive a coordinator restart,
// trading the "process-lifetime only" default for durability.
type Store interface {
	PutJob(record *types.JobRecord) error
	GetJob(jobID string) (*types.JobRecord, bool, error)
	ListJobs() ([]*types.JobRecord, error)
	DeleteJob(jobID string) error

	PutWorker(record *types.WorkerRecord) error
	GetWorker(identity string) (*types.WorkerRecord, bool, error)
	ListWorkers() ([]*types.WorkerRecord, error)
	DeleteWorker(identity string) error

	Close() error
}
