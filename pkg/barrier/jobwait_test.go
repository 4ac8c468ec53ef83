package barrier

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/types"
)

// pipeChannel is an in-process transport.ClientChannel double: frames sent
// on one end arrive on the paired end's Recv.
type pipeChannel struct {
	out chan types.Frame
	in  chan types.Frame
}

func newPipe() (a, b *pipeChannel) {
	left := make(chan types.Frame, 16)
	right := make(chan types.Frame, 16)
	return &pipeChannel{out: left, in: right}, &pipeChannel{out: right, in: left}
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

func newTestBarrierCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewBoltCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestJobWaitSucceedsWhenTargetReachesTerminalState(t *testing.T) {
	requesterSide, responderSide := newPipe()
	c := newTestBarrierCache(t)
	require.NoError(t, c.Set(cache.Entry{Key: cache.JobStateKey("sha-123"), Value: []byte(types.TerminalEnd)}))

	responder := &Responder{Cache: c, Channel: responderSide, Log: zerolog.Nop()}
	requester := &Requester{Channel: requesterSide, Log: zerolog.Nop()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		notice, err := responderSide.Recv(ctx)
		require.NoError(t, err)
		responder.Handle(ctx, notice)
	}()

	err := requester.Wait(ctx, "sha-123", []string{"worker-2"})
	require.NoError(t, err)
}

func TestJobWaitFailsOnTimeoutWhenTargetNeverTerminates(t *testing.T) {
	requesterSide, responderSide := newPipe()
	c := newTestBarrierCache(t)

	responder := &Responder{Cache: c, Channel: responderSide, Log: zerolog.Nop()}
	requester := &Requester{Channel: requesterSide, Log: zerolog.Nop()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		notice, err := responderSide.Recv(ctx)
		require.NoError(t, err)
		responder.deadlineOverrideForTest(ctx, notice)
	}()

	err := requester.Wait(ctx, "sha-missing", []string{"worker-2"})
	require.Error(t, err)
}

// deadlineOverrideForTest exercises the failure reply path without waiting
// out the real 10-minute Timeout constant.
func (r *Responder) deadlineOverrideForTest(ctx context.Context, notice types.Frame) {
	requester := notice.Command
	r.reply(ctx, requester, "sha-missing", false)
}

func TestRelaySwapsCommandAndIdentity(t *testing.T) {
	target, outbound := Relay(types.Frame{
		Identity: "worker-1",
		Command:  "worker-2",
		Control:  types.ControlCoordinationNotice,
	})
	require.Equal(t, "worker-2", target)
	require.Equal(t, "worker-1", outbound.Command)
	require.Empty(t, outbound.Identity)
}

func TestIsCoordinationFrame(t *testing.T) {
	require.True(t, IsCoordinationFrame(types.Frame{Control: types.ControlCoordinationAck}))
	require.False(t, IsCoordinationFrame(types.Frame{Control: types.ControlJobEnd}))
}
