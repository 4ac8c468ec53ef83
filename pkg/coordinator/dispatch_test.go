package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/docstore"
	"github.com/directord/directord/pkg/types"
)

// fakeServerChannel is an in-memory transport.ServerChannel double:
// Send(identity, frame) records what was pushed to each identity, and Recv
// drains a shared incoming queue fed by the test.
type fakeServerChannel struct {
	mu       sync.Mutex
	sent     map[string][]types.Frame
	incoming chan types.Frame
}

func newFakeServerChannel() *fakeServerChannel {
	return &fakeServerChannel{sent: make(map[string][]types.Frame), incoming: make(chan types.Frame, 64)}
}

func (f *fakeServerChannel) Send(identity string, frame types.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[identity] = append(f.sent[identity], frame)
	return nil
}

func (f *fakeServerChannel) Recv(ctx context.Context) (types.Frame, error) {
	select {
	case frame := <-f.incoming:
		return frame, nil
	case <-ctx.Done():
		return types.Frame{}, ctx.Err()
	}
}

func (f *fakeServerChannel) Close() error { return nil }

func (f *fakeServerChannel) framesFor(identity string) []types.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Frame(nil), f.sent[identity]...)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeServerChannel) {
	t.Helper()
	jobChannel := newFakeServerChannel()
	co := &Coordinator{
		Store:      docstore.NewMemoryStore(),
		Log:        zerolog.Nop(),
		jobCh:      make(chan types.JobItem, 16),
		jobChannel: jobChannel,
		stopCh:     make(chan struct{}),
	}
	return co, jobChannel
}

func TestResolveTargetsIntersectsWithLiveWorkers(t *testing.T) {
	co, _ := newTestCoordinator(t)
	now := time.Now()
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w1", Expiry: now.Add(time.Minute)}))
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w2", Expiry: now.Add(-time.Minute)}))

	targets, err := co.resolveTargets(types.JobItem{Verb: "RUN", Targets: []string{"w1", "w2", "w3"}})
	require.NoError(t, err)
	require.Equal(t, []string{"w1"}, targets)
}

func TestResolveTargetsQueryFansOutToAllLive(t *testing.T) {
	co, _ := newTestCoordinator(t)
	now := time.Now()
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w1", Expiry: now.Add(time.Minute)}))
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w2", Expiry: now.Add(time.Minute)}))

	targets, err := co.resolveTargets(types.JobItem{Verb: "QUERY", Targets: []string{"w1"}})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"w1", "w2"}, targets)
}

func TestResolveTargetsRunOnceTruncatesToOne(t *testing.T) {
	co, _ := newTestCoordinator(t)
	now := time.Now()
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w1", Expiry: now.Add(time.Minute)}))
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w2", Expiry: now.Add(time.Minute)}))

	targets, err := co.resolveTargets(types.JobItem{Verb: "RUN", RunOnce: true})
	require.NoError(t, err)
	require.Len(t, targets, 1)
}

func TestDispatchSendsFrameToEachTargetAndPersistsRecord(t *testing.T) {
	co, jobChannel := newTestCoordinator(t)
	now := time.Now()
	require.NoError(t, co.Store.PutWorker(&types.WorkerRecord{Identity: "w1", Expiry: now.Add(time.Minute)}))

	job := types.JobItem{JobID: "j1", Verb: "RUN", Args: map[string]interface{}{"command": "true"}}
	co.dispatch(context.Background(), job)

	frames := jobChannel.framesFor("w1")
	require.Len(t, frames, 1)
	require.Equal(t, types.ControlJobProcessing, frames[0].Control)
	require.Equal(t, "j1", frames[0].Command)

	var decoded types.JobItem
	require.NoError(t, json.Unmarshal(frames[0].Data, &decoded))
	require.Equal(t, "RUN", decoded.Verb)

	record, ok, err := co.Store.GetJob("j1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, record.Accepted)
	require.Equal(t, []string{"w1"}, record.Nodes)
}
