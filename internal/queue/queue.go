// Package queue implements the durable work queue the pipeline runs on:
// at-least-once delivery, a visibility timeout, bounded retry with
// exponential backoff, and late acknowledgement (ack only after the
// whole pipeline commits). It is built on a Redis stream with a
// consumer group, which gives pending-entry tracking (visibility) and
// redelivery (XAutoClaim) for free.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
)

// MaxAttempts is the bounded retry ceiling: a task that fails
// this many times moves to the dead-letter stream instead of retrying
// again.
const MaxAttempts = 3

const deadLetterSuffix = ":dead"

// Task is one unit of pipeline work: process a single uploaded receipt.
type Task struct {
	ID         string       `json:"id"`
	ReceiptID  uuid.UUID    `json:"receipt_id"`
	Entity     model.Entity `json:"entity"`
	Source     model.Source `json:"source"`
	ObjectKey  string       `json:"object_key"`
	Filename   string       `json:"filename"`
	Attempt    int          `json:"attempt"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// Delivery wraps a dequeued Task with the stream entry id needed to
// ack or retry it.
type Delivery struct {
	StreamID string
	Task     Task
}

// Queue is a Redis-stream-backed durable queue.
type Queue struct {
	client *redis.Client
	stream string
	group  string
}

// NewQueue dials Redis and ensures the consumer group exists, creating
// the stream if necessary. Safe to call from every worker process at
// startup — a BUSYGROUP error (group already exists) is swallowed.
func NewQueue(ctx context.Context, addr, password string, db int, stream, group string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("queue: create consumer group: %w", err)
	}

	return &Queue{client: client, stream: stream, group: group}, nil
}

// Enqueue appends a new process_receipt task to the stream.
func (q *Queue) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.EnqueuedAt = time.Now()

	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("queue: marshal task: %w", err)
	}

	streamID, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return streamID, nil
}

// Dequeue blocks up to block for one undelivered task, claiming it
// under consumer's name. The entry remains in the group's pending
// entries list (PEL) — invisible to other consumers for
// visibilityTimeout, reclaimed by ReclaimStale after that — until Ack
// or Retry is called.
func (q *Queue) Dequeue(ctx context.Context, consumer string, block time.Duration) (*Delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	task, err := decodeTask(msg.Values)
	if err != nil {
		return nil, err
	}
	return &Delivery{StreamID: msg.ID, Task: task}, nil
}

// Ack acknowledges and removes a successfully processed task. Called
// only after the pipeline's repository write has committed (late ack,
// on every attempt).
func (q *Queue) Ack(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("queue: ack %s: %w", streamID, err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("queue: delete acked entry %s: %w", streamID, err)
	}
	return nil
}

// Retry handles a failed delivery: if the task's attempt count is
// still under MaxAttempts, it re-enqueues with attempt+1 after the
// exponential backoff delay implied by the attempt number; otherwise
// it moves the task to the dead-letter stream. Either way the original
// delivery is acked so it leaves the pending entries list; if ctx ends
// during the backoff wait, Retry returns ctx.Err() and the delivery
// stays pending.
func (q *Queue) Retry(ctx context.Context, delivery *Delivery, cause error) error {
	task := delivery.Task
	task.Attempt++

	if task.Attempt >= MaxAttempts {
		log.Warn().Str("stage", "queue").Str("subcode", "dead_letter").
			Str("task_id", task.ID).Int("attempt", task.Attempt).
			Err(cause).Msg("task exceeded max attempts, moving to dead letter stream")
		if err := q.deadLetter(ctx, task, cause); err != nil {
			return err
		}
		return q.Ack(ctx, delivery.StreamID)
	}

	backoff := backoffFor(task.Attempt)
	log.Info().Str("stage", "queue").Str("subcode", "retry_scheduled").
		Str("task_id", task.ID).Int("attempt", task.Attempt).
		Dur("backoff", backoff).Err(cause).Msg("scheduling task retry")

	// The queue has no native delay primitive, so Retry waits out the
	// backoff itself, before acking, so that a shutdown mid-wait leaves
	// the entry pending for ReclaimStale instead of dropping it.
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if err := q.Ack(ctx, delivery.StreamID); err != nil {
		return err
	}
	_, err := q.Enqueue(ctx, task)
	return err
}

// backoffFor returns the exponential backoff delay for a given attempt
// number (1-indexed): 2s, 4s, 8s, ...
func backoffFor(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (q *Queue) deadLetter(ctx context.Context, task Task, cause error) error {
	payload, err := json.Marshal(struct {
		Task  Task   `json:"task"`
		Cause string `json:"cause"`
	}{Task: task, Cause: cause.Error()})
	if err != nil {
		return fmt.Errorf("queue: marshal dead letter: %w", err)
	}

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream + deadLetterSuffix,
		Values: map[string]interface{}{"payload": payload},
	}).Err(); err != nil {
		return fmt.Errorf("queue: dead letter enqueue: %w", err)
	}
	return nil
}

// ReclaimStale takes ownership of any pending entry idle longer than
// minIdle — a worker that died mid-task without acking leaves its
// claims behind; another worker reclaims and retries them.
func (q *Queue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration) ([]*Delivery, error) {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    10,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: reclaim stale: %w", err)
	}

	deliveries := make([]*Delivery, 0, len(messages))
	for _, msg := range messages {
		task, err := decodeTask(msg.Values)
		if err != nil {
			log.Warn().Str("stage", "queue").Str("subcode", "reclaim_decode_failed").
				Str("stream_id", msg.ID).Err(err).Msg("dropping unreadable stale entry")
			continue
		}
		deliveries = append(deliveries, &Delivery{StreamID: msg.ID, Task: task})
	}
	return deliveries, nil
}

func decodeTask(values map[string]interface{}) (Task, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Task{}, fmt.Errorf("queue: entry missing payload field")
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return Task{}, fmt.Errorf("queue: decode task: %w", err)
	}
	return task, nil
}
