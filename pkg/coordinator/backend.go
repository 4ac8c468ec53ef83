package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/directord/directord/pkg/barrier"
	"github.com/directord/directord/pkg/types"
)

// backendLoop owns the coordinator's backend channel: it relays JOB_WAIT
// coordination frames between the requesting and answering workers, and
// serves chunked file pulls (COPY/ADD) directly from local disk.
func (co *Coordinator) backendLoop(ctx context.Context) {
	defer co.wg.Done()

	for {
		select {
		case <-co.stopCh:
			return
		default:
		}

		frame, err := co.backendChannel.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case <-co.stopCh:
				return
			default:
			}
			co.Log.Warn().Err(err).Msg("backend channel receive error")
			continue
		}

		switch {
		case barrier.IsCoordinationFrame(frame):
			target, outbound := barrier.Relay(frame)
			if err := co.backendChannel.Send(target, outbound); err != nil {
				co.Log.Warn().Err(err).Str("target", target).Msg("relaying coordination frame")
			}
		case frame.Control == types.ControlTransferStart:
			go co.serveTransfer(frame)
		}
	}
}

// transferChunkSize matches the worker's pull chunk size (pkg/worker's
// transfer.go), so a single request/response pair always carries a whole
// chunk boundary.
const transferChunkSize = 131072

type transferRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// serveTransfer answers one TRANSFER_START request by reading the
// requested slice of the local file and replying with a chunk, or
// TRANSFER_END carrying the whole file's checksum once exhausted.
func (co *Coordinator) serveTransfer(frame types.Frame) {
	identity := frame.Identity
	var req transferRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		co.failTransfer(identity, err)
		return
	}

	size := req.Size
	if size <= 0 || size > transferChunkSize {
		size = transferChunkSize
	}

	file, err := os.Open(req.Path)
	if err != nil {
		co.failTransfer(identity, err)
		return
	}
	defer file.Close()

	buf := make([]byte, size)
	n, err := file.ReadAt(buf, req.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		co.failTransfer(identity, err)
		return
	}
	chunk := buf[:n]

	if errors.Is(err, io.EOF) || int64(n) < size {
		checksum, sumErr := fileChecksum(req.Path)
		if sumErr != nil {
			co.failTransfer(identity, sumErr)
			return
		}
		co.sendTransfer(identity, types.Frame{Control: types.ControlTransferEnd, Data: chunk, Info: []byte(checksum)})
		return
	}

	co.sendTransfer(identity, types.Frame{Control: types.ControlTransferStart, Data: chunk})
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return types.FingerprintBytes(data), nil
}

func (co *Coordinator) sendTransfer(identity string, frame types.Frame) {
	if err := co.backendChannel.Send(identity, frame); err != nil {
		co.Log.Warn().Err(err).Str("identity", identity).Msg("sending transfer chunk")
	}
}

func (co *Coordinator) failTransfer(identity string, err error) {
	co.Log.Warn().Err(err).Str("identity", identity).Msg("serving file transfer")
	co.sendTransfer(identity, types.Frame{Control: types.ControlJobFailed, Info: []byte(err.Error())})
}
