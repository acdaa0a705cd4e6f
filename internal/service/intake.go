package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"beacon.app/feedback/common/id"
	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/capture"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/queue"
)

// MaxScreenshotBytes bounds the decoded screenshot of a single report.
const MaxScreenshotBytes = 5 << 20

var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrInvalidKind        = errors.New("invalid feedback type")
	ErrEmptyReport        = errors.New("message or screenshot is required")
	ErrInvalidScreenshot  = errors.New("invalid screenshot")
	ErrScreenshotTooLarge = errors.New("screenshot too large")
)

type IntakeParams struct {
	App       *model.App
	SessionID *int64
	Payload   model.FeedbackPayload
	TraceID   *string
}

type IntakeResult struct {
	Report   *model.FeedbackReport
	Enqueued bool
}

// IntakeService validates and stores submitted feedback, then queues it for
// triage.
type IntakeService interface {
	Submit(ctx context.Context, params IntakeParams) (*IntakeResult, error)
}

type intakeService struct {
	txRunner TxRunner
	auth     AuthService
	queue    queue.Producer
	logger   *slog.Logger
}

func NewIntakeService(txRunner TxRunner, auth AuthService, queue queue.Producer, logger *slog.Logger) IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &intakeService{
		txRunner: txRunner,
		auth:     auth,
		queue:    queue,
		logger:   logger,
	}
}

func (s *intakeService) Submit(ctx context.Context, params IntakeParams) (*IntakeResult, error) {
	if params.App == nil {
		return nil, ErrInvalidAppToken
	}
	payload := params.Payload

	kind := payload.Type.OrDefault()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, payload.Type)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AppID: logger.Ptr(params.App.ID),
		Kind:  logger.Ptr(string(kind)),
	})

	var message *string
	if payload.Message != nil {
		if trimmed := strings.TrimSpace(*payload.Message); trimmed != "" {
			message = &trimmed
		}
	}

	screenshot, err := validateScreenshot(payload.Screenshot)
	if err != nil {
		return nil, err
	}
	if message == nil && screenshot == nil {
		return nil, ErrEmptyReport
	}

	user, err := s.resolveUser(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}
	if params.App.ForceAuth && user == nil {
		return nil, ErrAuthRequired
	}

	report := &model.FeedbackReport{
		ID:          id.New(),
		AppID:       params.App.ID,
		Kind:        kind,
		Message:     message,
		Screen:      payload.Screen,
		Screenshot:  screenshot,
		DeviceInfo:  payload.DeviceInfo,
		PackageInfo: payload.PackageInfo,
		Status:      model.ReportStatusReceived,
	}
	if user != nil {
		report.UserID = &user.ID
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Feedback().Create(ctx, report); err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{ReportID: logger.Ptr(report.ID)})

	// A failed enqueue leaves the report received; the sender still gets its id.
	enqueued := true
	if err := s.queue.Enqueue(ctx, queue.Task{
		TaskType: queue.TaskTypeFeedbackReport,
		ReportID: report.ID,
		AppID:    report.AppID,
		Kind:     string(kind),
		TraceID:  params.TraceID,
		Attempt:  1,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue report for triage", "error", err)
		enqueued = false
	}

	s.logger.InfoContext(ctx, "feedback received",
		"has_message", message != nil,
		"has_screenshot", screenshot != nil,
		"screen", report.Screen,
		"package", report.PackageInfo.Name,
		"enqueued", enqueued)

	return &IntakeResult{Report: report, Enqueued: enqueued}, nil
}

// resolveUser returns the session's user, or nil for an anonymous sender. An
// expired session counts as anonymous.
func (s *intakeService) resolveUser(ctx context.Context, sessionID *int64) (*model.User, error) {
	if sessionID == nil {
		return nil, nil
	}

	user, err := s.auth.ValidateSession(ctx, *sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUserNotFound) {
			s.logger.InfoContext(ctx, "ignoring invalid session on feedback", "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("validating session: %w", err)
	}
	return user, nil
}

func validateScreenshot(encoded *string) (*string, error) {
	if encoded == nil || *encoded == "" {
		return nil, nil
	}
	if len(*encoded) > base64.StdEncoding.EncodedLen(MaxScreenshotBytes) {
		return nil, ErrScreenshotTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(*encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreenshot, err)
	}
	if _, err := capture.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreenshot, err)
	}
	return encoded, nil
}
