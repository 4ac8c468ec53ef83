package coordinator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/docstore"
	"github.com/directord/directord/pkg/types"
)

func TestTouchWorkerSetsExpiryFromPayload(t *testing.T) {
	co := &Coordinator{
		Cfg:   &config.Config{HeartbeatInterval: time.Second, HeartbeatLiveness: 3},
		Store: docstore.NewMemoryStore(),
		Log:   zerolog.Nop(),
	}

	co.touchWorker(types.Frame{
		Identity: "w1",
		Control:  types.ControlNotice,
		Data:     []byte(`{"version":"1.0.0","machine_id":"abc"}`),
	})

	record, ok, err := co.Store.GetWorker("w1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1.0.0", record.Version)
	require.Equal(t, "abc", record.MachineID)
	require.True(t, record.Live(time.Now()))
	require.WithinDuration(t, time.Now().Add(3*time.Second), record.Expiry, 500*time.Millisecond)
}

func TestPruneAndProbeRemovesLongExpiredWorkers(t *testing.T) {
	co := &Coordinator{
		Cfg:              &config.Config{HeartbeatInterval: time.Second, HeartbeatLiveness: 3},
		Store:            docstore.NewMemoryStore(),
		Log:              zerolog.Nop(),
		heartbeatChannel: newFakeServerChannel(),
	}

	now := time.Now()
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "stale", Expiry: now.Add(-5 * time.Second)}))
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "fresh", Expiry: now.Add(500 * time.Millisecond)}))

	co.pruneAndProbe(time.Second)

	_, ok, err := co.Store.GetWorker("stale")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = co.Store.GetWorker("fresh")
	require.NoError(t, err)
	require.True(t, ok)
}
