package model

import (
	"encoding/base64"
	"time"
)

// Kind classifies a feedback report.
type Kind string

const (
	KindFeedback Kind = "feedback"
	KindBug      Kind = "bug"
)

// OrDefault returns k, or KindFeedback when the user never picked one.
func (k Kind) OrDefault() Kind {
	if k == "" {
		return KindFeedback
	}
	return k
}

func (k Kind) Valid() bool {
	return k == KindFeedback || k == KindBug
}

// ImageFormat is the decoded format of a screen capture.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
)

// ScreenCapture is an image of the host screen attached to a report.
type ScreenCapture struct {
	Data   []byte
	Format ImageFormat
	Width  int
	Height int
}

// Base64 encodes the raw image bytes for transport.
func (c *ScreenCapture) Base64() string {
	if c == nil || len(c.Data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.Data)
}

// Feedback is the record a coordinator builds up across one feedback screen.
type Feedback struct {
	Message       string
	Kind          Kind
	Capture       *ScreenCapture
	AttachCapture bool
	Screen        string
}

type ReportStatus string

const (
	ReportStatusReceived ReportStatus = "received"
	ReportStatusTriaged  ReportStatus = "triaged"
	ReportStatusFiled    ReportStatus = "filed"
)

// FeedbackReport is a submitted report as stored by the intake API.
type FeedbackReport struct {
	ID            int64        `json:"id"`
	AppID         int64        `json:"app_id"`
	UserID        *int64       `json:"user_id,omitempty"`
	Kind          Kind         `json:"kind"`
	Message       *string      `json:"message,omitempty"`
	Screen        string       `json:"screen"`
	Screenshot    *string      `json:"-"` // base64, large
	DeviceInfo    DeviceInfo   `json:"device_info"`
	PackageInfo   PackageInfo  `json:"package_info"`
	Status        ReportStatus `json:"status"`
	ExternalIssue *string      `json:"external_issue,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
