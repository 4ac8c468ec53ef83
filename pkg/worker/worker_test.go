package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/transport"
	"github.com/directord/directord/pkg/types"
)

// pipeChannel is an in-process transport.ClientChannel double: frames sent
// on it land in out, and Recv reads from in.
type pipeChannel struct {
	in  chan types.Frame
	out chan types.Frame
}

func newPipe() (*pipeChannel, *pipeChannel) {
	ab := make(chan types.Frame, 16)
	ba := make(chan types.Frame, 16)
	return &pipeChannel{in: ba, out: ab}, &pipeChannel{in: ab, out: ba}
}

func (p *pipeChannel) Send(ctx context.Context, frame types.Frame) error {
	select {
	case p.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeChannel) Recv(ctx context.Context) (types.Frame, error) {
	select {
	case f := <-p.in:
		return f, nil
	case <-ctx.Done():
		return types.Frame{}, ctx.Err()
	}
}

func (p *pipeChannel) Close() error { return nil }

// fakeDriver hands back pre-wired pipe channels for each of the three kinds.
type fakeDriver struct {
	job, backend, heartbeat *pipeChannel
}

func (d *fakeDriver) JobBind(ctx context.Context) (transport.ServerChannel, error)       { return nil, nil }
func (d *fakeDriver) BackendBind(ctx context.Context) (transport.ServerChannel, error)   { return nil, nil }
func (d *fakeDriver) HeartbeatBind(ctx context.Context) (transport.ServerChannel, error) { return nil, nil }
func (d *fakeDriver) JobConnect(ctx context.Context, identity string) (transport.ClientChannel, error) {
	return d.job, nil
}
func (d *fakeDriver) BackendConnect(ctx context.Context, identity string) (transport.ClientChannel, error) {
	return d.backend, nil
}
func (d *fakeDriver) HeartbeatConnect(ctx context.Context, identity string) (transport.ClientChannel, error) {
	return d.heartbeat, nil
}
func (d *fakeDriver) Close() error { return nil }

func newTestWorker(t *testing.T) (*Worker, *pipeChannel, *pipeChannel, *pipeChannel) {
	t.Helper()
	jobSide, jobCoord := newPipe()
	backendSide, backendCoord := newPipe()
	hbSide, hbCoord := newPipe()

	c, err := cache.NewBoltCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	driver := &fakeDriver{job: jobSide, backend: backendSide, heartbeat: hbSide}
	cfg := &config.Config{HeartbeatInterval: time.Hour}
	w := NewWorker(cfg, "worker-1", driver, c, components.NewRegistry(), zerolog.Nop())

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	return w, jobCoord, backendCoord, hbCoord
}

func TestJobLoopExecutesRunJobAndReportsEnd(t *testing.T) {
	_, jobCoord, _, _ := newTestWorker(t)

	job := types.JobItem{JobID: "j1", Verb: "RUN", Args: map[string]interface{}{"command": "true"}}
	data, err := json.Marshal(job)
	require.NoError(t, err)

	require.NoError(t, jobCoord.Send(context.Background(), types.Frame{Control: types.ControlJobProcessing, Data: data}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sawAck, sawEnd bool
	for !sawEnd {
		frame, err := jobCoord.Recv(ctx)
		require.NoError(t, err)
		switch frame.Control {
		case types.ControlJobAck:
			sawAck = true
		case types.ControlJobEnd:
			sawEnd = true
		}
	}
	require.True(t, sawAck)
	require.True(t, sawEnd)
}

func TestIdleIntervalEscalatesWithQuietTime(t *testing.T) {
	require.Equal(t, 128*time.Millisecond, idleInterval(time.Time{}))
	require.Equal(t, 128*time.Millisecond, idleInterval(time.Now()))
	require.Equal(t, 1024*time.Millisecond, idleInterval(time.Now().Add(-40*time.Second)))
	require.Equal(t, 2048*time.Millisecond, idleInterval(time.Now().Add(-70*time.Second)))
}
