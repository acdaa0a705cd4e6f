package worker

import (
	"context"

	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// ReportTriager decides what happens to a freshly received report.
type ReportTriager interface {
	Triage(ctx context.Context, report *model.FeedbackReport, app *model.App) (Outcome, error)
}

// IssueFiler opens an issue in an external tracker and returns its URL.
type IssueFiler interface {
	FileIssue(ctx context.Context, project string, draft IssueDraft) (string, error)
}

type Outcome struct {
	Status        model.ReportStatus
	ExternalIssue *string
}

type IssueDraft struct {
	Title       string
	Description string
	Labels      []string
}
