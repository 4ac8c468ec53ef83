package docstore

import (
	"fmt"
	"sync"

	"github.com/directord/directord/pkg/types"
)

// MemoryStore is the default, process-lifetime-scoped Store: two mutex-
// guarded maps, the direct equivalent of the original coordinator's
// in-process job/worker dictionaries.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*types.JobRecord
	workers map[string]*types.WorkerRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*types.JobRecord),
		workers: make(map[string]*types.WorkerRecord),
	}
}

func (m *MemoryStore) PutJob(record *types.JobRecord) error {
	if record.JobID == "" {
		return fmt.Errorf("docstore: job record missing job_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[record.JobID] = record
	return nil
}

func (m *MemoryStore) GetJob(jobID string) (*types.JobRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.jobs[jobID]
	return record, ok, nil
}

func (m *MemoryStore) ListJobs() ([]*types.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.JobRecord, 0, len(m.jobs))
	for _, r := range m.jobs {
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) DeleteJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MemoryStore) PutWorker(record *types.WorkerRecord) error {
	if record.Identity == "" {
		return fmt.Errorf("docstore: worker record missing identity")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[record.Identity] = record
	return nil
}

func (m *MemoryStore) GetWorker(identity string) (*types.WorkerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.workers[identity]
	return record, ok, nil
}

func (m *MemoryStore) ListWorkers() ([]*types.WorkerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.WorkerRecord, 0, len(m.workers))
	for _, r := range m.workers {
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) DeleteWorker(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, identity)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
