package docstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/types"
)

func TestMemoryStoreJobRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	record := types.NewJobRecord(types.JobItem{JobID: "job-1", Verb: "RUN"})
	require.NoError(t, store.PutJob(record))

	got, ok, err := store.GetJob("job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "job-1", got.JobID)

	list, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.DeleteJob("job-1"))
	_, ok, err = store.GetJob("job-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreWorkerRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.PutWorker(&types.WorkerRecord{Identity: "worker-1"}))

	got, ok, err := store.GetWorker("worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "worker-1", got.Identity)

	require.NoError(t, store.DeleteWorker("worker-1"))
	_, ok, err = store.GetWorker("worker-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStorePutJobRequiresID(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	err := store.PutJob(&types.JobRecord{})
	require.Error(t, err)
}
