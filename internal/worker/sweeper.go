package worker

import (
	"context"
	"log/slog"
	"time"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/queue"
)

// Sweeper periodically enqueues a session_sweep task so expired CLI sessions
// are purged by whichever worker picks it up.
type Sweeper struct {
	producer queue.Producer
	interval time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(producer queue.Producer, interval time.Duration) *Sweeper {
	return &Sweeper{
		producer:  producer,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "beacon.worker.sweeper"})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "session sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.producer.Enqueue(ctx, queue.Task{TaskType: queue.TaskTypeSessionSweep}); err != nil {
				slog.ErrorContext(ctx, "failed to enqueue session sweep", "error", err)
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
