package feedback

import (
	"context"

	"beacon.app/feedback/internal/model"
)

// View is the passive screen the coordinator drives. Every call is
// fire-and-forget.
type View interface {
	ShowCaptureAffordance()
	HideCaptureAffordance()
	ShowCapturePreview()
	HideCapturePreview()
	SetCaptureEnabled(enabled bool)
	ClearScreenData()
	Dismiss()
	SetClassificationSelected(kind model.Kind)
	RequestLogin()
	PromptCaptureEdit()
	CollectInput()
}

// ErrorDisplay surfaces submission failures to the user.
type ErrorDisplay interface {
	ShowError(err error)
}

// PermissionGate checks and requests host permissions. Request invokes
// onResult at most once, possibly from another goroutine.
type PermissionGate interface {
	IsGranted(p model.Permission) bool
	Request(ctx context.Context, p model.Permission, onResult func(granted bool))
}

// SessionGate exposes the remote app config and the user's login state.
// CurrentConfig returns nil when no config has been fetched.
type SessionGate interface {
	CurrentConfig() *model.AppConfig
	HasActiveSession() bool
}

// Submitter sends a finalized submission without blocking and invokes
// onResult exactly once.
type Submitter interface {
	Submit(ctx context.Context, sub model.Submission, onResult func(*model.FeedbackResult, error))
}

// CaptureSource produces a screen capture of the host on demand.
type CaptureSource interface {
	Capture(ctx context.Context) (*model.ScreenCapture, error)
}
