package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/model"
)

const component = "beacon.feedback.coordinator"

// Coordinator runs one feedback screen: it collects the user's input, passes
// the permission and session gates, and dispatches a single submission.
type Coordinator interface {
	SetClassification(kind model.Kind)
	ToggleCaptureAttachment(enabled bool)
	SetScreenCapture(capture *model.ScreenCapture)
	Cancel()
	Submit(ctx context.Context, message, screen string) error

	InitUI()
	ScreenCapture(ctx context.Context) (*model.ScreenCapture, error)
	OpenCapturePreview()
	ConfirmCaptureEdit()
	RequestSend()

	State() State
	Record() model.Feedback
}

// Dependencies are the capabilities a Coordinator drives. View is required;
// a missing Permissions gate is reported by Submit.
type Dependencies struct {
	View        View
	Errors      ErrorDisplay
	Permissions PermissionGate
	Sessions    SessionGate
	Submitter   Submitter
	Captures    CaptureSource

	// Permission checked before sending. Defaults to PermissionNetworkState.
	Permission model.Permission
	// SessionID tags every log line of this feedback screen.
	SessionID int64
	Logger    *slog.Logger
}

type coordinator struct {
	view        View
	errs        ErrorDisplay
	permissions PermissionGate
	sessions    SessionGate
	submitter   Submitter
	captures    CaptureSource
	permission  model.Permission
	sessionID   int64
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	record   model.Feedback
	capture  *model.ScreenCapture
	attempt  int64 // bumped per Submit and on Cancel; callbacks carry the value they were issued with
	inFlight bool
}

func New(deps Dependencies) Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Permission == "" {
		deps.Permission = model.PermissionNetworkState
	}
	return &coordinator{
		view:        deps.View,
		errs:        deps.Errors,
		permissions: deps.Permissions,
		sessions:    deps.Sessions,
		submitter:   deps.Submitter,
		captures:    deps.Captures,
		permission:  deps.Permission,
		sessionID:   deps.SessionID,
		logger:      deps.Logger,
		state:       StateIdle,
	}
}

func (c *coordinator) SetClassification(kind model.Kind) {
	if !kind.Valid() {
		c.logger.WarnContext(c.logCtx(context.Background(), 0), "ignoring unknown feedback kind", "kind", kind)
		return
	}

	c.mu.Lock()
	c.record.Kind = kind
	c.touchLocked()
	c.mu.Unlock()

	c.view.SetClassificationSelected(kind)
}

func (c *coordinator) ToggleCaptureAttachment(enabled bool) {
	c.mu.Lock()
	c.record.AttachCapture = enabled
	c.touchLocked()
	c.mu.Unlock()

	if enabled {
		c.view.ShowCaptureAffordance()
	} else {
		c.view.HideCaptureAffordance()
	}
}

func (c *coordinator) SetScreenCapture(capture *model.ScreenCapture) {
	if capture == nil || len(capture.Data) == 0 || capture.Width <= 0 || capture.Height <= 0 {
		c.logger.WarnContext(c.logCtx(context.Background(), 0), "cannot update screen capture with an empty image")
		return
	}

	c.mu.Lock()
	c.capture = capture
	c.touchLocked()
	c.mu.Unlock()

	c.view.ShowCaptureAffordance()
	c.view.SetCaptureEnabled(true)
}

func (c *coordinator) Cancel() {
	c.mu.Lock()
	c.attempt++
	c.capture = nil
	c.record = model.Feedback{}
	c.state = StateIdle
	c.inFlight = false
	c.mu.Unlock()

	c.view.ClearScreenData()
	c.view.Dismiss()
}

func (c *coordinator) Submit(ctx context.Context, message, screen string) error {
	if c.permissions == nil {
		c.logger.ErrorContext(c.logCtx(ctx, 0), "permission gate must be configured before reading network state")
		return ErrPermissionGateMissing
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmissionInProgress
	}
	c.record.Message = message
	c.record.Screen = screen
	if c.record.AttachCapture {
		c.record.Capture = c.capture
	} else {
		c.record.Capture = nil
	}
	c.attempt++
	attempt := c.attempt
	c.state = StateComposing
	kind := c.record.Kind.OrDefault()
	c.mu.Unlock()

	ctx = c.logCtx(ctx, attempt)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Kind: logger.Ptr(string(kind))})

	if c.permissions.IsGranted(c.permission) {
		c.afterPermission(ctx, attempt)
		return nil
	}

	// A pending request does not block a later Submit: the prompt may never
	// be answered, and a newer attempt makes its answer stale.
	if !c.advance(attempt, StateAwaitingPermission, false) {
		return nil
	}
	c.logger.DebugContext(ctx, "requesting permission before sending feedback", "permission", c.permission)
	c.permissions.Request(ctx, c.permission, func(granted bool) {
		c.onPermissionResult(ctx, attempt, granted)
	})
	return nil
}

func (c *coordinator) onPermissionResult(ctx context.Context, attempt int64, granted bool) {
	if !granted {
		if c.advance(attempt, StateComposing, false) {
			c.logger.InfoContext(ctx, "permission denied, feedback not sent", "permission", c.permission)
		}
		return
	}
	if !c.current(attempt) {
		c.logger.DebugContext(ctx, "ignoring stale permission result")
		return
	}
	c.afterPermission(ctx, attempt)
}

// afterPermission runs the session gate and, if it passes, dispatches the
// submission.
func (c *coordinator) afterPermission(ctx context.Context, attempt int64) {
	if c.needsLogin(ctx) {
		if c.advance(attempt, StateAwaitingLogin, false) {
			c.logger.InfoContext(ctx, "login required before sending feedback")
			c.view.RequestLogin()
		}
		return
	}

	if c.submitter == nil {
		c.logger.ErrorContext(ctx, "submission client not configured, feedback not sent")
		c.advance(attempt, StateComposing, false)
		return
	}

	c.mu.Lock()
	if attempt != c.attempt {
		c.mu.Unlock()
		return
	}
	c.state = StateSubmitting
	c.inFlight = true
	sub := model.Submission{
		Message: c.record.Message,
		Kind:    c.record.Kind.OrDefault(),
		Capture: c.record.Capture,
		Screen:  c.record.Screen,
	}
	c.mu.Unlock()

	span := logger.StartSpan(ctx, "feedback.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("feedback.kind", string(sub.Kind)),
			attribute.Bool("feedback.capture", sub.Capture != nil),
		))
	// Cancel only makes the result stale; it never aborts the post.
	ctx = context.WithoutCancel(span.Context())

	c.logger.DebugContext(ctx, "dispatching feedback", "has_capture", sub.Capture != nil, "screen", sub.Screen)
	c.submitter.Submit(ctx, sub, func(result *model.FeedbackResult, err error) {
		span.Finish(err)
		c.onSubmissionResult(ctx, attempt, result, err)
	})
}

func (c *coordinator) needsLogin(ctx context.Context) bool {
	var cfg *model.AppConfig
	if c.sessions != nil {
		cfg = c.sessions.CurrentConfig()
	}
	if cfg == nil {
		c.logger.WarnContext(ctx, "app config unavailable at send time, requiring login")
		return true
	}
	return cfg.ForceAuth && !c.sessions.HasActiveSession()
}

func (c *coordinator) onSubmissionResult(ctx context.Context, attempt int64, result *model.FeedbackResult, err error) {
	c.mu.Lock()
	if attempt != c.attempt {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "ignoring stale submission result", "error", err)
		return
	}
	c.inFlight = false
	c.state = StateIdle
	if err == nil {
		c.capture = nil
		c.record = model.Feedback{}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "feedback submission failed", "error", err)
		if c.errs != nil {
			c.errs.ShowError(err)
		}
		return
	}

	if result != nil {
		ctx = logger.WithLogFields(ctx, logger.LogFields{ReportID: logger.Ptr(result.ID)})
	}
	c.logger.InfoContext(ctx, "feedback submitted")
	c.view.ClearScreenData()
	c.view.Dismiss()
}

func (c *coordinator) InitUI() {
	c.mu.Lock()
	hasCapture := c.capture != nil
	c.touchLocked()
	c.mu.Unlock()

	if !hasCapture {
		c.view.SetCaptureEnabled(false)
		return
	}
	c.view.ShowCaptureAffordance()
	c.view.ShowCapturePreview()
	c.view.SetCaptureEnabled(true)
}

// ScreenCapture returns the current capture, taking one from the capture
// source the first time it is needed.
func (c *coordinator) ScreenCapture(ctx context.Context) (*model.ScreenCapture, error) {
	c.mu.Lock()
	if c.capture != nil {
		capture := c.capture
		c.mu.Unlock()
		return capture, nil
	}
	c.mu.Unlock()

	if c.captures == nil {
		return nil, ErrNoCaptureSource
	}
	capture, err := c.captures.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		c.capture = capture
	}
	return c.capture, nil
}

func (c *coordinator) OpenCapturePreview() {
	c.view.ShowCapturePreview()
}

func (c *coordinator) ConfirmCaptureEdit() {
	c.view.PromptCaptureEdit()
	c.view.HideCapturePreview()
}

func (c *coordinator) RequestSend() {
	c.view.CollectInput()
}

func (c *coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *coordinator) Record() model.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// advance moves to next if attempt is still current. Returns false for a
// stale attempt.
func (c *coordinator) advance(attempt int64, next State, inFlight bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt != c.attempt {
		return false
	}
	c.state = next
	c.inFlight = inFlight
	return true
}

func (c *coordinator) current(attempt int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return attempt == c.attempt
}

// touchLocked marks user activity on an idle screen. Caller holds mu.
func (c *coordinator) touchLocked() {
	if c.state == StateIdle {
		c.state = StateComposing
	}
}

func (c *coordinator) logCtx(ctx context.Context, attempt int64) context.Context {
	fields := logger.LogFields{Component: component}
	if c.sessionID != 0 {
		fields.FeedbackSessionID = logger.Ptr(c.sessionID)
	}
	if attempt != 0 {
		fields.AttemptID = logger.Ptr(attempt)
	}
	return logger.WithLogFields(ctx, fields)
}
