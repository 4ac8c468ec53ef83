package barrier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/types"
)

func TestQueryWaitSucceedsOnceAnswerPresent(t *testing.T) {
	c := newTestBarrierCache(t)
	args := map[string]interface{}{"query": map[string]interface{}{"worker-2": map[string]interface{}{"role": "db"}}}
	data, err := json.Marshal(args)
	require.NoError(t, err)
	require.NoError(t, c.Set(cache.Entry{Key: "args", Value: data}))

	ec := &components.ExecContext{Cache: c, Log: zerolog.Nop()}
	comp := &QueryWaitComponent{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := comp.Execute(ctx, ec, types.JobItem{
		JobID: "j1",
		Args:  map[string]interface{}{"key": "role", "identities": []interface{}{"worker-2"}},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestQueryWaitTimesOutWhenIdentityMissing(t *testing.T) {
	c := newTestBarrierCache(t)
	ec := &components.ExecContext{Cache: c, Log: zerolog.Nop()}
	comp := &QueryWaitComponent{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := comp.Execute(ctx, ec, types.JobItem{
		JobID: "j1",
		Args:  map[string]interface{}{"key": "role", "identities": []interface{}{"worker-3"}},
	})
	require.Error(t, err)
}
