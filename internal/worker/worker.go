package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/queue"
	"beacon.app/feedback/internal/store"
)

// Mirrors service.StoreProvider - defined here to avoid import cycles.
type StoreProvider interface {
	Apps() store.AppStore
	Feedback() store.FeedbackStore
	Sessions() store.SessionStore
}

// Mirrors service.TxRunner - defined here to avoid import cycles.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer Consumer
	txRunner TxRunner
	triager  ReportTriager
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, txRunner TxRunner, triager ReportTriager, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		txRunner:  txRunner,
		triager:   triager,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "beacon.worker"})
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
		}

		if err := w.processOneBatch(ctx); err != nil {
			failures++
			delay := readBackoff(failures)
			slog.ErrorContext(ctx, "batch processing error", "error", err, "retry_in", delay)
			if !w.sleep(ctx, delay) {
				return nil
			}
			continue
		}
		failures = 0
	}
}

// sleep waits for d and reports false if the worker was stopped or ctx ended
// first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.stopCh:
		return false
	}
}

// readBackoff grows from one second while the stream keeps failing, capped
// at thirty seconds.
func readBackoff(failures int) time.Duration {
	d := time.Second << min(failures-1, 5)
	return min(d, 30*time.Second)
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(messageCtx(ctx, msg), "message processing failed", "error", err)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(messageCtx(ctx, msg), "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage handles one task and acks it once its transaction commits.
// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = messageCtx(ctx, msg)

	span := logger.ContinueTrace(ctx, msg.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", string(msg.TaskType)),
			attribute.Int("task.attempt", msg.Attempt),
		))
	ctx = span.Context()

	slog.InfoContext(ctx, "processing message", "task_type", msg.TaskType, "attempt", msg.Attempt)

	err := w.dispatch(ctx, msg)
	span.Finish(err)
	if err != nil {
		// Not acked: requeued by the caller or reclaimed later.
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer redelivers it; triage of a filed report is a no-op.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeFeedbackReport:
		return w.triageReport(ctx, msg)
	case queue.TaskTypeSessionSweep:
		return w.sweepSessions(ctx)
	default:
		slog.WarnContext(ctx, "unknown task type, acknowledging", "task_type", msg.TaskType)
		return nil
	}
}

func (w *Worker) triageReport(ctx context.Context, msg queue.Message) error {
	if msg.ReportID == nil {
		return fmt.Errorf("feedback_report task without report id")
	}

	report, app, err := w.loadPending(ctx, *msg.ReportID)
	if err != nil || report == nil {
		return err
	}

	// Filing talks to GitLab and the LLM, so it runs outside any transaction.
	// A report that already carries an issue url is not filed again.
	outcome, err := w.triager.Triage(ctx, report, app)
	if err != nil {
		return fmt.Errorf("triaging report: %w", err)
	}

	if outcome.ExternalIssue != nil && report.ExternalIssue == nil {
		if err := w.recordIssue(ctx, report.ID, *outcome.ExternalIssue); err != nil {
			return err
		}
	}

	err = w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return sp.Feedback().UpdateStatus(ctx, report.ID, outcome.Status, outcome.ExternalIssue)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.WarnContext(ctx, "report deleted during triage", "status", outcome.Status)
		return nil
	case err != nil:
		return fmt.Errorf("recording triage outcome: %w", err)
	}

	slog.InfoContext(ctx, "report triaged",
		"status", outcome.Status,
		"external_issue", outcome.ExternalIssue)
	return nil
}

// recordIssue commits the filed issue url on its own, so a later failure to
// update the status retries without filing a second issue.
func (w *Worker) recordIssue(ctx context.Context, reportID int64, url string) error {
	err := w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return sp.Feedback().RecordIssue(ctx, reportID, url)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Deleted, or another delivery recorded its url first. The status
		// update below settles which.
		slog.WarnContext(ctx, "issue url not recorded", "external_issue", url)
		return nil
	case err != nil:
		slog.ErrorContext(ctx, "filed issue could not be recorded", "external_issue", url, "error", err)
		return fmt.Errorf("recording filed issue: %w", err)
	}
	return nil
}

// loadPending returns the report and its app, or a nil report when there is
// nothing left to triage.
func (w *Worker) loadPending(ctx context.Context, reportID int64) (*model.FeedbackReport, *model.App, error) {
	var (
		report *model.FeedbackReport
		app    *model.App
	)
	err := w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		r, err := sp.Feedback().GetByID(ctx, reportID)
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "report no longer exists, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading report: %w", err)
		}
		if r.Status != model.ReportStatusReceived {
			slog.InfoContext(ctx, "report already triaged, skipping", "status", r.Status)
			return nil
		}

		a, err := sp.Apps().GetByID(ctx, r.AppID)
		if err != nil {
			return fmt.Errorf("loading app: %w", err)
		}
		report, app = r, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return report, app, nil
}

func (w *Worker) sweepSessions(ctx context.Context) error {
	return w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		deleted, err := sp.Sessions().DeleteExpired(ctx)
		if err != nil {
			return fmt.Errorf("deleting expired sessions: %w", err)
		}
		slog.InfoContext(ctx, "expired sessions swept", "deleted", deleted)
		return nil
	})
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	ctx = messageCtx(ctx, msg)

	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ", "attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

func messageCtx(ctx context.Context, msg queue.Message) context.Context {
	fields := logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		ReportID:  msg.ReportID,
		AppID:     msg.AppID,
	}
	if msg.Kind != "" {
		fields.Kind = logger.Ptr(msg.Kind)
	}
	return logger.WithLogFields(ctx, fields)
}
