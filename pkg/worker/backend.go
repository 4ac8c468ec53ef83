package worker

import (
	"context"
	"errors"

	"github.com/directord/directord/pkg/barrier"
	"github.com/directord/directord/pkg/types"
)

// backendLoop owns the worker's long-lived backend channel. Transfers
// (COPY/ADD pulls, JOB_WAIT barriers) use their own short-lived connections,
// so this loop only ever sees coordination notices relayed from a peer
// worker's JOB_WAIT request and answers them via a barrier.Responder.
func (w *Worker) backendLoop(ctx context.Context) {
	defer w.wg.Done()

	responder := &barrier.Responder{Cache: w.Cache, Channel: w.backend, Log: w.Log}

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		frame, err := w.backend.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case <-w.stopCh:
				return
			default:
			}
			w.Log.Warn().Err(err).Msg("backend channel receive error")
			continue
		}

		if frame.Control == types.ControlCoordinationNotice {
			go responder.Handle(ctx, frame)
		}
	}
}
