package components

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/types"
)

const queueCacheKey = "queue"

// queueSemaphore bounds how many queue items a single worker processes
// concurrently for the durable-queue ingestion variant.
var queueSemaphore = semaphore.NewWeighted(4)

// QueueSentinelComponent pops the oldest entry off a durable FIFO queue
// namespace in the cache, guarded by a counting semaphore so offline/batch
// ingestion pipelines never flood a worker with more in-flight items than
// it can handle.
type QueueSentinelComponent struct{}

func (c *QueueSentinelComponent) Verb() string      { return "QUEUESENTINEL" }
func (c *QueueSentinelComponent) Cacheable() bool   { return false }
func (c *QueueSentinelComponent) RequiresLock() bool { return false }

func (c *QueueSentinelComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	if err := queueSemaphore.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("components: QUEUESENTINEL job %s acquiring slot: %w", job.JobID, err)
	}
	defer queueSemaphore.Release(1)

	entry, ok, err := popQueueItem(ec.Cache)
	if err != nil {
		return Result{}, fmt.Errorf("components: QUEUESENTINEL job %s popping queue: %w", job.JobID, err)
	}
	if !ok {
		return Result{Success: true, Info: []byte("queue empty")}, nil
	}

	return Result{Success: true, Info: entry.Value}, nil
}

// popQueueItem removes and returns the oldest entry tagged "queue", the
// durable-FIFO namespace QUEUESENTINEL drains.
func popQueueItem(c cache.Cache) (cache.Entry, bool, error) {
	items, err := c.Items()
	if err != nil {
		return cache.Entry{}, false, err
	}

	var oldest *cache.Entry
	for i := range items {
		if !items[i].HasTag(queueCacheKey) {
			continue
		}
		if oldest == nil || items[i].Birthtime.Before(oldest.Birthtime) {
			oldest = &items[i]
		}
	}
	if oldest == nil {
		return cache.Entry{}, false, nil
	}
	return c.Pop(oldest.Key)
}

// PushQueueItem enqueues a durable FIFO item for later QUEUESENTINEL pops.
func PushQueueItem(c cache.Cache, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("components: marshaling queue item %s: %w", key, err)
	}
	return c.Set(cache.Entry{Key: key, Value: data, Tags: []string{queueCacheKey}})
}
