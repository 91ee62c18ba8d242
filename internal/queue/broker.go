// Package queue implements the C6 task queue and worker pool: named FIFO
// queues backed by Redis lists, each drained by a bounded pool of workers
// (spec.md §4.6, §5). The worker-loop shape is adapted from the teacher's
// RunScheduled background jobs (backend/internal/jobs/cleanup.go): run
// until ctx is cancelled, log and continue past a single failed iteration.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker is a Redis-backed FIFO broker. Enqueue pushes to the head of a
// list; workers pop from the tail with BRPOPLPUSH into a per-queue
// "processing" list so an in-flight job surviving a worker crash is not
// silently lost (it can be swept back onto the main queue by a future
// reaper; spec.md §4.6 treats delivery as at-least-once and leaves
// duplicate suppression to row-status checks, not broker exactly-once
// semantics).
type Broker struct {
	client *redis.Client
}

// NewBroker wraps an existing Redis client.
func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func queueKey(name string) string {
	return "bff:queue:" + name
}

func processingKey(name string) string {
	return "bff:queue:" + name + ":processing"
}

// Enqueue pushes a job onto the named queue's head (FIFO: workers pop from
// the tail).
func (b *Broker) Enqueue(ctx context.Context, queueName string, job interface{}) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	if err := b.client.LPush(ctx, queueKey(queueName), payload).Err(); err != nil {
		return fmt.Errorf("queue: enqueue to %s: %w", queueName, err)
	}
	return nil
}

// ErrNoJob is returned by Dequeue when the block timeout elapses with
// nothing on the queue.
var ErrNoJob = errors.New("queue: no job available")

// Dequeue blocks up to blockFor waiting for a job on queueName, moving it
// atomically into that queue's processing list. Callers must call Ack (or
// Nack) once the job has been handled.
func (b *Broker) Dequeue(ctx context.Context, queueName string, blockFor time.Duration) ([]byte, error) {
	result, err := b.client.BRPopLPush(ctx, queueKey(queueName), processingKey(queueName), blockFor).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue from %s: %w", queueName, err)
	}
	return []byte(result), nil
}

// Ack removes a successfully processed payload from the processing list.
func (b *Broker) Ack(ctx context.Context, queueName string, payload []byte) error {
	if err := b.client.LRem(ctx, processingKey(queueName), 1, string(payload)).Err(); err != nil {
		return fmt.Errorf("queue: ack on %s: %w", queueName, err)
	}
	return nil
}

// Nack removes the payload from the processing list and pushes it back
// onto the queue head for retry (spec.md §4.6 retry-with-backoff).
func (b *Broker) Nack(ctx context.Context, queueName string, payload []byte) error {
	if err := b.client.LRem(ctx, processingKey(queueName), 1, string(payload)).Err(); err != nil {
		return fmt.Errorf("queue: nack cleanup on %s: %w", queueName, err)
	}
	if err := b.client.LPush(ctx, queueKey(queueName), payload).Err(); err != nil {
		return fmt.Errorf("queue: nack requeue on %s: %w", queueName, err)
	}
	return nil
}

// Len reports the number of jobs currently waiting on queueName (used by
// startup logging and health diagnostics).
func (b *Broker) Len(ctx context.Context, queueName string) (int64, error) {
	n, err := b.client.LLen(ctx, queueKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len %s: %w", queueName, err)
	}
	return n, nil
}
