package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/directord/directord/pkg/transport"
	"github.com/directord/directord/pkg/types"
)

// chunkSize is the default transfer chunk, matching the original's
// backend-channel transfer default.
const chunkSize = 131072

// transferRequest is the JSON body of a TRANSFER_START request frame: the
// source path and the byte range the worker wants next.
type transferRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// backendTransferer implements components.Transferer. Each Pull opens its
// own short-lived backend connection (rather than sharing the worker's
// long-lived backend channel, which is reserved for coordination notices)
// and requests successive chunks of the remote file by offset/size until a
// short chunk or an explicit TRANSFER_END arrives.
type backendTransferer struct {
	driver   transport.Driver
	identity string
}

func (b *backendTransferer) Pull(ctx context.Context, remotePath string) ([]byte, string, error) {
	channel, err := b.driver.BackendConnect(ctx, b.identity)
	if err != nil {
		return nil, "", fmt.Errorf("worker: opening transfer channel for %s: %w", remotePath, err)
	}
	defer channel.Close()

	var data []byte
	var offset int64

	for {
		req, err := json.Marshal(transferRequest{Path: remotePath, Offset: offset, Size: chunkSize})
		if err != nil {
			return nil, "", fmt.Errorf("worker: encoding transfer request for %s: %w", remotePath, err)
		}
		if err := channel.Send(ctx, types.Frame{Control: types.ControlTransferStart, Data: req}); err != nil {
			return nil, "", fmt.Errorf("worker: requesting %s at offset %d: %w", remotePath, offset, err)
		}

		frame, err := channel.Recv(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("worker: receiving transfer of %s: %w", remotePath, err)
		}

		switch frame.Control {
		case types.ControlJobFailed:
			return nil, "", fmt.Errorf("worker: coordinator failed transfer of %s: %s", remotePath, string(frame.Data))
		case types.ControlTransferEnd:
			data = append(data, frame.Data...)
			return data, string(frame.Info), nil
		default:
			data = append(data, frame.Data...)
			offset += int64(len(frame.Data))
			if int64(len(frame.Data)) < chunkSize {
				return data, string(frame.Info), nil
			}
		}
	}
}
