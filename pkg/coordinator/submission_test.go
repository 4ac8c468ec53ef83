package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/types"
)

func TestHandleJobSubmissionAssignsIDsAndQueues(t *testing.T) {
	co, _ := newTestCoordinator(t)
	client, server := net.Pipe()
	defer client.Close()

	go co.handleSubmission(context.Background(), server)

	go func() {
		_, _ = client.Write([]byte(`{"verb":"RUN","command":"true"}`))
		buf := make([]byte, 256)
		_, _ = client.Read(buf)
	}()

	select {
	case job := <-co.jobCh:
		require.NotEmpty(t, job.JobID)
		require.Equal(t, job.JobID, job.ParentID)
		require.NotEmpty(t, job.JobSHA3224)
	case <-time.After(time.Second):
		t.Fatal("expected job to be queued")
	}
}

func TestHandleJobSubmissionDropsOutsideRestrictSet(t *testing.T) {
	co, _ := newTestCoordinator(t)
	client, server := net.Pipe()
	defer client.Close()

	go co.handleSubmission(context.Background(), server)

	payload, err := json.Marshal(map[string]interface{}{
		"verb":     "RUN",
		"command":  "true",
		"restrict": []string{"does-not-match"},
	})
	require.NoError(t, err)

	go func() {
		_, _ = client.Write(payload)
	}()

	reader := bufio.NewReader(client)
	buf := make([]byte, 256)
	n, _ := reader.Read(buf)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(buf[:n], &resp))
	require.Equal(t, false, resp["success"])

	select {
	case job := <-co.jobCh:
		t.Fatalf("expected no job to be queued, got %+v", job)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleManageListJobs(t *testing.T) {
	co, _ := newTestCoordinator(t)
	require.NoError(t, co.Store.PutJob(types.NewJobRecord(types.JobItem{JobID: "j1"})))

	client, server := net.Pipe()
	defer client.Close()
	go co.handleManage(server, "list-jobs")

	reader := bufio.NewReader(client)
	buf := make([]byte, 1024)
	n, _ := reader.Read(buf)

	var jobs []types.JobRecord
	require.NoError(t, json.Unmarshal(buf[:n], &jobs))
	require.Len(t, jobs, 1)
	require.Equal(t, "j1", jobs[0].JobID)
}
