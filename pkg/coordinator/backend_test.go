package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/types"
)

func TestServeTransferSendsWholeFileInOneShortChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello transfer"), 0o644))

	backend := newFakeServerChannel()
	co := &Coordinator{Log: zerolog.Nop(), backendChannel: backend}

	req, err := json.Marshal(transferRequest{Path: path, Offset: 0, Size: transferChunkSize})
	require.NoError(t, err)

	co.serveTransfer(types.Frame{Identity: "w1", Control: types.ControlTransferStart, Data: req})

	frames := backend.framesFor("w1")
	require.Len(t, frames, 1)
	require.Equal(t, types.ControlTransferEnd, frames[0].Control)
	require.Equal(t, "hello transfer", string(frames[0].Data))
	require.NotEmpty(t, frames[0].Info)
}

func TestServeTransferFailsOnMissingFile(t *testing.T) {
	backend := newFakeServerChannel()
	co := &Coordinator{Log: zerolog.Nop(), backendChannel: backend}

	req, err := json.Marshal(transferRequest{Path: "/no/such/file", Offset: 0, Size: transferChunkSize})
	require.NoError(t, err)

	co.serveTransfer(types.Frame{Identity: "w1", Control: types.ControlTransferStart, Data: req})

	frames := backend.framesFor("w1")
	require.Len(t, frames, 1)
	require.Equal(t, types.ControlJobFailed, frames[0].Control)
}

func TestBackendLoopRelaysCoordinationFrames(t *testing.T) {
	backend := newFakeServerChannel()
	co := &Coordinator{Log: zerolog.Nop(), backendChannel: backend, stopCh: make(chan struct{})}
	co.wg.Add(1)

	backend.incoming <- types.Frame{
		Control:  types.ControlCoordinationNotice,
		Identity: "requester",
		Command:  "responder",
		Data:     []byte(`{"fingerprint":"abc"}`),
	}

	done := make(chan struct{})
	go func() {
		co.backendLoop(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(backend.framesFor("responder")) == 1
	}, time.Second, 10*time.Millisecond)

	relayed := backend.framesFor("responder")[0]
	require.Equal(t, types.ControlCoordinationNotice, relayed.Control)
	require.Equal(t, "requester", relayed.Command)

	close(co.stopCh)
	backend.incoming <- types.Frame{}
	<-done
}
