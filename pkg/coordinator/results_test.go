package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/types"
)

func TestApplyResultTracksFullLifecycle(t *testing.T) {
	co, _ := newTestCoordinator(t)
	require.NoError(t, co.Store.PutJob(types.NewJobRecord(types.JobItem{JobID: "j1", Verb: "RUN"})))

	co.applyResult(types.Frame{Control: types.ControlJobAck, Command: "j1", Identity: "w1"})
	record, ok, err := co.Store.GetJob("j1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, record.CreateTime.IsZero())

	co.applyResult(types.Frame{Control: types.ControlJobProcessing, Command: "j1", Identity: "w1"})
	record, _, _ = co.Store.GetJob("j1")
	require.True(t, record.Processing)
	require.False(t, record.StartTime.IsZero())

	co.applyResult(types.Frame{Control: types.ControlJobEnd, Command: "j1", Identity: "w1", Data: []byte("RUN"), Stdout: []byte("ok")})
	record, _, _ = co.Store.GetJob("j1")
	require.Contains(t, record.Success, "w1")
	require.Equal(t, "ok", record.Stdout["w1"])
	require.Contains(t, record.ExecutionTime, "w1")
	require.Contains(t, record.TotalRoundtripTime, "w1")
}

func TestApplyResultRecordsFailure(t *testing.T) {
	co, _ := newTestCoordinator(t)
	require.NoError(t, co.Store.PutJob(types.NewJobRecord(types.JobItem{JobID: "j1", Verb: "RUN"})))

	co.applyResult(types.Frame{Control: types.ControlJobFailed, Command: "j1", Identity: "w1", Stderr: []byte("boom")})
	record, ok, err := co.Store.GetJob("j1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, record.Failed, "w1")
	require.Equal(t, "boom", record.Stderr["w1"])
}

func TestApplyResultQueryTriggersFanout(t *testing.T) {
	co, _ := newTestCoordinator(t)
	require.NoError(t, co.Store.PutJob(types.NewJobRecord(types.JobItem{JobID: "j1", Verb: "QUERY"})))

	co.applyResult(types.Frame{
		Control:  types.ControlJobEnd,
		Command:  "j1",
		Identity: "w1",
		Data:     []byte("QUERY"),
		Info:     []byte(`{"release":"v1"}`),
	})

	select {
	case job := <-co.jobCh:
		require.Equal(t, "ARG", job.Verb)
		values, ok := job.Args["values"].(map[string]interface{})
		require.True(t, ok)
		query, ok := values["query"].(map[string]interface{})
		require.True(t, ok)
		require.Contains(t, query, "w1")
	case <-time.After(time.Second):
		t.Fatal("expected a fanned-out ARG job on the queue")
	}
}

func TestIdleIntervalEscalatesWithQuietTime(t *testing.T) {
	require.Equal(t, 128*time.Millisecond, idleInterval(time.Time{}))
	require.Equal(t, 128*time.Millisecond, idleInterval(time.Now()))
	require.Equal(t, 1024*time.Millisecond, idleInterval(time.Now().Add(-40*time.Second)))
	require.Equal(t, 2048*time.Millisecond, idleInterval(time.Now().Add(-70*time.Second)))
}
