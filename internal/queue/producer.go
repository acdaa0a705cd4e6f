package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// streamMaxLen caps the task stream. Trimming is approximate and only drops
// entries far older than anything still pending.
const streamMaxLen = 100_000

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{client: client, stream: stream, logger: logger}
}

// Enqueue appends task to the stream. A task without a trace id inherits the
// one active on ctx.
func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	if task.TraceID == nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			task.TraceID = &traceID
		}
	}

	values := taskValues(task)
	entryID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("adding %s task to %s: %w", values[fieldTaskType], p.stream, err)
	}

	p.logger.DebugContext(ctx, "task enqueued",
		"entry_id", entryID,
		"task_type", values[fieldTaskType],
		"attempt", values[fieldAttempt])
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
