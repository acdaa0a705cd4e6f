package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"beacon.app/feedback/common/otel"
	"beacon.app/feedback/internal/device"
	"beacon.app/feedback/internal/model"
)

const maxBodyBytes = 1 << 20

type Config struct {
	BaseURL    string
	AppToken   string
	Timeout    time.Duration
	Device     device.Details
	App        device.App
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks JSON to the intake API and stamps every request with the
// SDK headers.
type Client struct {
	baseURL  string
	appToken string
	http     *http.Client
	device   device.Details
	app      device.App
	logger   *slog.Logger
}

type Request struct {
	Method    string
	Path      string
	Body      any
	SessionID string
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.Device == nil {
		cfg.Device = device.NewHost()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		appToken: cfg.AppToken,
		http:     httpClient,
		device:   cfg.Device,
		app:      cfg.App,
		logger:   cfg.Logger,
	}
}

// Do sends req and decodes a 2xx body into out (which may be nil). Non-2xx
// replies are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	for key, values := range device.Headers(c.device, c.app) {
		httpReq.Header[key] = values
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.appToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.appToken)
	}
	if req.SessionID != "" {
		httpReq.Header.Set("X-Session-ID", req.SessionID)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	otel.InjectHeaders(ctx, httpReq.Header)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	c.logger.DebugContext(ctx, "api request completed",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) DeviceInfo() model.DeviceInfo {
	return device.Collect(c.device)
}

func (c *Client) PackageInfo() model.PackageInfo {
	return c.app.PackageInfo()
}
