package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries dead-letters a task once it has been delivered this many
	// times. Zero disables the limit.
	MaxDeliveries int64
}

// PendingStream lists and claims tasks that were delivered but never acked.
type PendingStream interface {
	Stale(ctx context.Context) ([]redis.XPendingExt, error)
	Claim(ctx context.Context, ids []string) ([]redis.XMessage, error)
}

// RedisReclaimer picks up triage tasks left pending by a worker that died
// between read and ack. A task that keeps coming back is dead-lettered
// instead of retried forever.
type RedisReclaimer struct {
	pending   PendingStream
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	return NewReclaimer(&redisPending{client: client, cfg: cfg}, cfg, consumer, processor)
}

func NewReclaimer(pending PendingStream, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		pending:   pending,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "beacon.worker.reclaimer"})
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle failed", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// ReclaimOnce claims every stale task in one batch and handles each in turn.
// It returns how many tasks were claimed.
func (r *RedisReclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	stale, err := r.pending.Stale(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing pending tasks: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	deliveries := make(map[string]int64, len(stale))
	ids := make([]string, 0, len(stale))
	for _, p := range stale {
		deliveries[p.ID] = p.RetryCount
		ids = append(ids, p.ID)
	}

	claimed, err := r.pending.Claim(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("claiming pending tasks: %w", err)
	}

	slog.InfoContext(ctx, "claimed stale tasks", "stale", len(stale), "claimed", len(claimed))

	for _, entry := range claimed {
		r.handle(ctx, entry, deliveries[entry.ID])
	}
	return len(claimed), nil
}

func (r *RedisReclaimer) handle(ctx context.Context, entry redis.XMessage, delivered int64) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(entry.ID)})

	msg, err := queue.ParseMessage(entry)
	if err != nil {
		slog.ErrorContext(ctx, "dropping malformed reclaimed task", "error", err)
		_ = r.consumer.Ack(ctx, queue.Message{ID: entry.ID, Raw: entry})
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{ReportID: msg.ReportID, AppID: msg.AppID})

	if r.cfg.MaxDeliveries > 0 && delivered >= r.cfg.MaxDeliveries {
		slog.ErrorContext(ctx, "task exceeded max deliveries", "deliveries", delivered)
		if err := r.consumer.SendDLQ(ctx, msg, fmt.Sprintf("delivered %d times without ack", delivered)); err != nil {
			slog.ErrorContext(ctx, "failed to dead-letter task", "error", err)
		}
		return
	}

	start := time.Now()
	if err := r.processor(ctx, msg); err != nil {
		// Stays pending; its delivery count grows until it is dead-lettered.
		slog.WarnContext(ctx, "reclaimed task failed again", "error", err, "deliveries", delivered)
		return
	}
	slog.InfoContext(ctx, "reclaimed task processed", "duration_ms", time.Since(start).Milliseconds())
}

type redisPending struct {
	client *redis.Client
	cfg    RedisReclaimerConfig
}

func (p *redisPending) Stale(ctx context.Context) ([]redis.XPendingExt, error) {
	return p.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: p.cfg.Stream,
		Group:  p.cfg.Group,
		Idle:   p.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  p.cfg.BatchSize,
	}).Result()
}

func (p *redisPending) Claim(ctx context.Context, ids []string) ([]redis.XMessage, error) {
	return p.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   p.cfg.Stream,
		Group:    p.cfg.Group,
		Consumer: p.cfg.Consumer,
		MinIdle:  p.cfg.MinIdle,
		Messages: ids,
	}).Result()
}
