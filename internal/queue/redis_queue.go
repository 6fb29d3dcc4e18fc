package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rca-copilot/internal/models"
)

// QueryQueue is a single Redis FIFO list shared by the API (producer) and the
// worker (consumer). Delivery is at-most-once: popping removes the job, so a
// consumer crash after the pop loses it. The result record's TTL bounds how
// long such a job can appear stuck.
type QueryQueue struct {
	client *redis.Client
	key    string
}

// New wraps an existing Redis client. The caller owns the client's lifecycle.
func New(client *redis.Client, key string) *QueryQueue {
	return &QueryQueue{client: client, key: key}
}

// Push appends a job to the tail of the queue.
func (q *QueryQueue) Push(ctx context.Context, job models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// PopBlocking removes and returns the head of the queue, waiting up to
// timeout when the queue is empty. A nil job with nil error means the wait
// timed out with nothing to do.
func (q *QueryQueue) PopBlocking(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}
	// BLPOP replies [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected blpop reply of %d elements", len(res))
	}
	var job models.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *QueryQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
