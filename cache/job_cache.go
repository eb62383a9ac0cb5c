package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storyreel/model"
)

const (
	recentJobsKey = "jobs:recent"
	maxRecentJobs = 200
)

// JobStatusKey 生成任务状态的Redis键
func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

// JobCache stores job statuses as JSON with a TTL.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobCache creates a JobCache.
func NewJobCache(client *redis.Client, ttl time.Duration) *JobCache {
	return &JobCache{client: client, ttl: ttl}
}

// Save writes status and records the job in the recent list on first save.
func (c *JobCache) Save(ctx context.Context, status *model.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal job status: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, JobStatusKey(status.ID), data, c.ttl)
	if status.State == model.JobQueued {
		pipe.LPush(ctx, recentJobsKey, status.ID)
		pipe.LTrim(ctx, recentJobsKey, 0, maxRecentJobs-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job status %s: %w", status.ID, err)
	}
	return nil
}

// Get returns the status of jobID or model.ErrJobNotFound.
func (c *JobCache) Get(ctx context.Context, jobID string) (*model.JobStatus, error) {
	data, err := c.client.Get(ctx, JobStatusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job status %s: %w", jobID, err)
	}
	var status model.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job status %s: %w", jobID, err)
	}
	return &status, nil
}

// Recent returns up to n most recently queued jobs that have not expired.
func (c *JobCache) Recent(ctx context.Context, n int) ([]*model.JobStatus, error) {
	ids, err := c.client.LRange(ctx, recentJobsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	out := make([]*model.JobStatus, 0, len(ids))
	for _, id := range ids {
		status, err := c.Get(ctx, id)
		if errors.Is(err, model.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}
