package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon.app/feedback/common/logger"
)

const maxRequeueDelay = time.Minute

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	BatchSize int64
	Block     time.Duration
	// MaxAttempts is informational here; the worker decides when to dead-letter.
	MaxAttempts int
	// RequeueDelay is the wait before the second attempt. It doubles for each
	// later attempt, capped at a minute.
	RequeueDelay time.Duration
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

// RedisConsumer reads feedback tasks from a stream through a consumer group.
// Failed tasks are re-added to the stream rather than left pending, so the
// attempt count travels with the entry.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	now    func() time.Time
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	c := &RedisConsumer{client: client, cfg: cfg, now: time.Now}
	if err := c.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}
	return c, nil
}

// ensureGroup creates the group at "0" so a recreated group still sees
// reports already on the stream.
func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

// Read returns the next batch of never-delivered entries. Entries that cannot
// be decoded are dead-lettered with their raw values and left out of the batch.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "beacon.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			msg, parseErr := ParseMessage(entry)
			if parseErr != nil {
				slog.ErrorContext(ctx, "malformed task on stream",
					"error", parseErr,
					"raw_message_id", entry.ID)
				if err := c.deadLetterRaw(ctx, entry, parseErr.Error()); err != nil {
					slog.ErrorContext(ctx, "failed to dead-letter malformed task", "error", err)
				}
				continue
			}
			messages = append(messages, msg)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read tasks", "count", len(messages), "consumer", c.cfg.Consumer)
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	return c.ack(ctx, msg.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", id, err)
	}
	return nil
}

// Requeue re-adds msg with the next attempt number after a backoff.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	return c.RequeueWithAttempt(ctx, msg, msg.Attempt+1, errMsg)
}

func (c *RedisConsumer) RequeueWithAttempt(ctx context.Context, msg Message, attempt int, errMsg string) error {
	if attempt <= 0 {
		attempt = max(msg.Attempt, 1)
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking task before requeue: %w", err)
	}

	if delay := c.backoff(attempt); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	values := messageValues(msg, attempt)
	if errMsg != "" {
		values[fieldLastError] = errMsg
	}

	// Use a fresh context so a shutdown during the backoff does not lose the task.
	addCtx := context.WithoutCancel(ctx)
	if err := c.client.XAdd(addCtx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "task requeued", "next_attempt", attempt, "reason", errMsg)
	return nil
}

// backoff is RequeueDelay for attempt 2, doubling per attempt after that.
func (c *RedisConsumer) backoff(attempt int) time.Duration {
	if c.cfg.RequeueDelay <= 0 || attempt <= 1 {
		return 0
	}
	delay := c.cfg.RequeueDelay
	for i := 2; i < attempt && delay < maxRequeueDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRequeueDelay)
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking task before dlq: %w", err)
	}

	values := messageValues(msg, msg.Attempt)
	values[fieldError] = errMsg
	if err := c.addDLQ(ctx, values); err != nil {
		return err
	}

	slog.ErrorContext(ctx, "task sent to DLQ", "final_error", errMsg, "dlq_stream", c.cfg.DLQStream)
	return nil
}

// deadLetterRaw moves an undecodable entry to the DLQ as-is.
func (c *RedisConsumer) deadLetterRaw(ctx context.Context, entry redis.XMessage, errMsg string) error {
	if err := c.ack(ctx, entry.ID); err != nil {
		return err
	}
	values := make(map[string]any, len(entry.Values)+1)
	for k, v := range entry.Values {
		values[k] = v
	}
	values[fieldError] = errMsg
	return c.addDLQ(ctx, values)
}

func (c *RedisConsumer) addDLQ(ctx context.Context, values map[string]any) error {
	if c.cfg.DLQStream == "" {
		return fmt.Errorf("no dlq stream configured")
	}
	values[fieldFailedAt] = c.now().UTC().Format(time.RFC3339)
	values[fieldConsumer] = c.cfg.Consumer
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq %s: %w", c.cfg.DLQStream, err)
	}
	return nil
}
