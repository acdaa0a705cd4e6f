package store

import (
	"context"
	"errors"

	"beacon.app/feedback/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// AppStore defines the contract for app data access
type AppStore interface {
	GetByID(ctx context.Context, id int64) (*model.App, error)
	GetByToken(ctx context.Context, token string) (*model.App, error)
	Create(ctx context.Context, app *model.App) error
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpsertByWorkOSID(ctx context.Context, user *model.User) error
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// FeedbackStore defines the contract for feedback report data access
type FeedbackStore interface {
	Create(ctx context.Context, report *model.FeedbackReport) error
	GetByID(ctx context.Context, id int64) (*model.FeedbackReport, error)
	UpdateStatus(ctx context.Context, id int64, status model.ReportStatus, externalIssue *string) error
	// RecordIssue stores the url of the issue filed for a report. It never
	// overwrites an existing url.
	RecordIssue(ctx context.Context, id int64, url string) error
}
