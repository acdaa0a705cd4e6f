package submission

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"beacon.app/feedback/internal/apiclient"
	"beacon.app/feedback/internal/model"
)

const feedbackPath = "/api/v1/feedback"

// SessionSource supplies the logged-in session sent with each report, or ""
// when there is none.
type SessionSource interface {
	SessionID() string
}

// API is the slice of apiclient.Client the submitter needs.
type API interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
	DeviceInfo() model.DeviceInfo
	PackageInfo() model.PackageInfo
}

// Client sends feedback reports to the intake API on a background goroutine.
// It never retries.
type Client struct {
	api      API
	sessions SessionSource
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func New(api API, sessions SessionSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, sessions: sessions, logger: logger}
}

// Submit posts sub and calls onResult exactly once with the created report
// or the failure. Cancelling ctx does not abort a post already under way; the
// API client's timeout bounds it instead.
func (c *Client) Submit(ctx context.Context, sub model.Submission, onResult func(*model.FeedbackResult, error)) {
	ctx = context.WithoutCancel(ctx)
	payload := BuildPayload(sub, c.api.DeviceInfo(), c.api.PackageInfo())
	var sessionID string
	if c.sessions != nil {
		sessionID = c.sessions.SessionID()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		var result model.FeedbackResult
		err := c.api.Do(ctx, apiclient.Request{
			Method:    http.MethodPost,
			Path:      feedbackPath,
			Body:      payload,
			SessionID: sessionID,
		}, &result)
		if err != nil {
			onResult(nil, fmt.Errorf("submitting feedback: %w", err))
			return
		}

		c.logger.DebugContext(ctx, "feedback accepted", "report_id", result.ID)
		onResult(&result, nil)
	}()
}

// Wait blocks until every in-flight submission has reported its result.
func (c *Client) Wait() {
	c.wg.Wait()
}

// BuildPayload converts a submission into the wire body. An empty message and
// a missing capture are sent as null.
func BuildPayload(sub model.Submission, deviceInfo model.DeviceInfo, pkg model.PackageInfo) model.FeedbackPayload {
	payload := model.FeedbackPayload{
		DeviceInfo:  deviceInfo,
		PackageInfo: pkg,
		Type:        sub.Kind.OrDefault(),
		Screen:      sub.Screen,
	}
	if sub.Message != "" {
		payload.Message = &sub.Message
	}
	if encoded := sub.Capture.Base64(); encoded != "" {
		payload.Screenshot = &encoded
	}
	return payload
}
