package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/directord/directord/pkg/types"
)

const (
	jobKeyPrefix    = "directord:job:"
	workerKeyPrefix = "directord:worker:"
)

// RedisStore persists job and worker documents to an external Redis
// instance, the pluggable external-datastore backend named in spec.md's
// document-store abstraction, grounded on the original implementation's own
// Redis datastore plugin.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore connects to addr/db. The background context is used for all
// operations since Store's interface is synchronous; callers needing
// cancellation should wrap calls at a higher layer.
func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("docstore: connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ctx: ctx}, nil
}

func (r *RedisStore) PutJob(record *types.JobRecord) error {
	if record.JobID == "" {
		return fmt.Errorf("docstore: job record missing job_id")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("docstore: encoding job %s: %w", record.JobID, err)
	}
	return r.client.Set(r.ctx, jobKeyPrefix+record.JobID, data, 0).Err()
}

func (r *RedisStore) GetJob(jobID string) (*types.JobRecord, bool, error) {
	data, err := r.client.Get(r.ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("docstore: fetching job %s: %w", jobID, err)
	}
	var record types.JobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("docstore: decoding job %s: %w", jobID, err)
	}
	return &record, true, nil
}

func (r *RedisStore) ListJobs() ([]*types.JobRecord, error) {
	keys, err := r.scanKeys(jobKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*types.JobRecord, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(r.ctx, key).Bytes()
		if err != nil {
			continue
		}
		var record types.JobRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("docstore: decoding job at %s: %w", key, err)
		}
		out = append(out, &record)
	}
	return out, nil
}

func (r *RedisStore) DeleteJob(jobID string) error {
	return r.client.Del(r.ctx, jobKeyPrefix+jobID).Err()
}

func (r *RedisStore) PutWorker(record *types.WorkerRecord) error {
	if record.Identity == "" {
		return fmt.Errorf("docstore: worker record missing identity")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("docstore: encoding worker %s: %w", record.Identity, err)
	}
	return r.client.Set(r.ctx, workerKeyPrefix+record.Identity, data, 0).Err()
}

func (r *RedisStore) GetWorker(identity string) (*types.WorkerRecord, bool, error) {
	data, err := r.client.Get(r.ctx, workerKeyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("docstore: fetching worker %s: %w", identity, err)
	}
	var record types.WorkerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("docstore: decoding worker %s: %w", identity, err)
	}
	return &record, true, nil
}

func (r *RedisStore) ListWorkers() ([]*types.WorkerRecord, error) {
	keys, err := r.scanKeys(workerKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*types.WorkerRecord, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(r.ctx, key).Bytes()
		if err != nil {
			continue
		}
		var record types.WorkerRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("docstore: decoding worker at %s: %w", key, err)
		}
		out = append(out, &record)
	}
	return out, nil
}

func (r *RedisStore) DeleteWorker(identity string) error {
	return r.client.Del(r.ctx, workerKeyPrefix+identity).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) scanKeys(prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(r.ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("docstore: scanning %s*: %w", prefix, err)
	}
	return keys, nil
}
