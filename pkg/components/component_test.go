package components

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/types"
)

func newTestExecContext(t *testing.T) *ExecContext {
	t.Helper()
	c, err := cache.NewBoltCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return &ExecContext{Cache: c, Log: zerolog.Nop(), Identity: "worker-1"}
}

func TestArgComponentMergesAndCachesEnv(t *testing.T) {
	ec := newTestExecContext(t)
	comp := &ArgComponent{verb: "ENV", isEnv: true}

	job := types.JobItem{JobID: "j1", Args: map[string]interface{}{
		"values": map[string]interface{}{"FOO": "bar"},
	}}

	result, err := comp.Execute(context.Background(), ec, job)
	require.NoError(t, err)
	require.True(t, result.Success)

	envs, err := cachedEnvs(ec.Cache)
	require.NoError(t, err)
	require.Equal(t, "bar", envs["FOO"])

	args, err := cachedArgs(ec.Cache)
	require.NoError(t, err)
	require.Equal(t, "bar", args["FOO"])
}

func TestCacheEvictComponentRemovesTaggedEntries(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, ec.Cache.Set(cache.Entry{Key: "a", Value: []byte("1"), Tags: []string{"x"}}))
	require.NoError(t, ec.Cache.Set(cache.Entry{Key: "b", Value: []byte("2"), Tags: []string{"y"}}))

	comp := &CacheEvictComponent{}
	result, err := comp.Execute(context.Background(), ec, types.JobItem{JobID: "j1", Args: map[string]interface{}{"tag": "x"}})
	require.NoError(t, err)
	require.True(t, result.Success)

	_, ok, err := ec.Cache.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = ec.Cache.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestQueryComponentReturnsCachedValue(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, mergeArgs(ec.Cache, map[string]interface{}{"answer": 42.0}, false))

	comp := &QueryComponent{}
	result, err := comp.Execute(context.Background(), ec, types.JobItem{JobID: "j1", Args: map[string]interface{}{"key": "answer"}})
	require.NoError(t, err)
	require.True(t, result.Success)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Info, &payload))
	require.Equal(t, 42.0, payload["answer"])
}

func TestWorkdirComponentSetsDirectory(t *testing.T) {
	ec := newTestExecContext(t)
	dir := t.TempDir() + "/sub"

	comp := &WorkdirComponent{}
	result, err := comp.Execute(context.Background(), ec, types.JobItem{JobID: "j1", Args: map[string]interface{}{"path": dir}})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, dir, ec.WorkDir())
}

func TestQueueSentinelComponentDrainsOldestFirst(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, PushQueueItem(ec.Cache, "q1", "first"))
	require.NoError(t, PushQueueItem(ec.Cache, "q2", "second"))

	comp := &QueueSentinelComponent{}
	result, err := comp.Execute(context.Background(), ec, types.JobItem{JobID: "j1"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.JSONEq(t, `"first"`, string(result.Info))

	result, err = comp.Execute(context.Background(), ec, types.JobItem{JobID: "j2"})
	require.NoError(t, err)
	require.JSONEq(t, `"second"`, string(result.Info))
}

func TestFactComponentReportsBuiltinFacts(t *testing.T) {
	ec := newTestExecContext(t)
	comp := &FactComponent{}

	result, err := comp.Execute(context.Background(), ec, types.JobItem{JobID: "j1"})
	require.NoError(t, err)
	require.True(t, result.Success)

	args, err := cachedArgs(ec.Cache)
	require.NoError(t, err)
	require.NotEmpty(t, args["os"])
	require.NotEmpty(t, args["arch"])
}

func TestRunComponentAppliesCachedEnvs(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, mergeEnvs(ec.Cache, map[string]interface{}{"GREETING": "hi"}))

	comp := &RunComponent{}
	job := types.JobItem{JobID: "j1", Args: map[string]interface{}{
		"command":    "echo $GREETING",
		"stdout_arg": "out",
	}}

	result, err := comp.Execute(context.Background(), ec, job)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "hi\n", string(result.Stdout))
}

type fakeTransferer struct {
	data []byte
}

func (f *fakeTransferer) Pull(ctx context.Context, remotePath string) ([]byte, string, error) {
	return f.data, types.FingerprintBytes(f.data), nil
}

func TestCopyComponentFailsOnFingerprintMismatch(t *testing.T) {
	ec := newTestExecContext(t)
	ec.Transfer = &fakeTransferer{data: []byte("actual content")}

	job := types.JobItem{JobID: "j1", Args: map[string]interface{}{
		"from":          "/remote/file",
		"to":            t.TempDir() + "/file",
		"file_sha3_224": "not-the-real-fingerprint",
	}}

	comp := &CopyComponent{}
	_, err := comp.Execute(context.Background(), ec, job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Data integrity failure")
	require.Contains(t, err.Error(), "not-the-real-fingerprint")
}

func TestCopyComponentSkipsTransferWhenDestinationMatches(t *testing.T) {
	ec := newTestExecContext(t)
	dest := t.TempDir() + "/file"
	content := []byte("already here")
	require.NoError(t, os.WriteFile(dest, content, 0o644))
	ec.Transfer = &fakeTransferer{data: []byte("should never be read")}

	job := types.JobItem{JobID: "j1", Args: map[string]interface{}{
		"from":          "/remote/file",
		"to":            dest,
		"file_sha3_224": types.FingerprintBytes(content),
	}}

	comp := &CopyComponent{}
	result, err := comp.Execute(context.Background(), ec, job)
	require.NoError(t, err)
	require.True(t, result.Success)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, content, written)
}

func TestQueryComponentPushesQueryWaitFollowOnWhenSelfTargeted(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, mergeArgs(ec.Cache, map[string]interface{}{"answer": 42.0}, false))

	comp := &QueryComponent{}
	job := types.JobItem{JobID: "j1", Targets: []string{"worker-1"}, Args: map[string]interface{}{"key": "answer"}}

	_, followOns, err := Execute(context.Background(), comp, ec, job)
	require.NoError(t, err)
	require.Len(t, followOns, 1)
	require.Equal(t, "QUERY_WAIT", followOns[0].Verb)
	require.Equal(t, []string{"worker-1"}, followOns[0].Targets)
	require.Equal(t, "answer", followOns[0].Args["key"])
}

func TestQueryComponentSkipsFollowOnWhenNotSelfTargeted(t *testing.T) {
	ec := newTestExecContext(t)
	require.NoError(t, mergeArgs(ec.Cache, map[string]interface{}{"answer": 42.0}, false))

	comp := &QueryComponent{}
	job := types.JobItem{JobID: "j1", Targets: []string{"worker-2"}, Args: map[string]interface{}{"key": "answer"}}

	_, followOns, err := Execute(context.Background(), comp, ec, job)
	require.NoError(t, err)
	require.Empty(t, followOns)
}

func TestExecuteProducesArgFollowOnForStdoutArg(t *testing.T) {
	ec := newTestExecContext(t)
	comp := &RunComponent{}

	job := types.JobItem{JobID: "j1", Args: map[string]interface{}{
		"command":    "echo hello",
		"stdout_arg": "greeting",
	}}

	_, followOns, err := Execute(context.Background(), comp, ec, job)
	require.NoError(t, err)
	require.Len(t, followOns, 1)
	require.Equal(t, "ARG", followOns[0].Verb)
	require.Equal(t, []string{"worker-1"}, followOns[0].Targets)
}
