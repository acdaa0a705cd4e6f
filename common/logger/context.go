package logger

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so business context (feedback session,
// report, app) is included in every log statement without threading it by hand.
type LogFields struct {
	FeedbackSessionID *int64  // Coordinator instance (one per feedback screen)
	AttemptID         *int64  // Submit attempt token within a session
	ReportID          *int64  // Stored feedback report
	AppID             *int64  // App the report belongs to
	MessageID         *string // Redis stream message ID
	Kind              *string // "feedback" or "bug"
	Component         string  // Component name (OTel semantic convention style, e.g., "beacon.feedback.coordinator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.FeedbackSessionID != nil {
		result.FeedbackSessionID = next.FeedbackSessionID
	}
	if next.AttemptID != nil {
		result.AttemptID = next.AttemptID
	}
	if next.ReportID != nil {
		result.ReportID = next.ReportID
	}
	if next.AppID != nil {
		result.AppID = next.AppID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Kind != nil {
		result.Kind = next.Kind
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ReportID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

func (f LogFields) attrs() []slog.Attr {
	var out []slog.Attr
	addInt := func(key string, v *int64) {
		if v != nil {
			out = append(out, slog.Int64(key, *v))
		}
	}
	addStr := func(key string, v *string) {
		if v != nil {
			out = append(out, slog.String(key, *v))
		}
	}
	addInt("feedback_session_id", f.FeedbackSessionID)
	addInt("attempt_id", f.AttemptID)
	addInt("report_id", f.ReportID)
	addInt("app_id", f.AppID)
	addStr("message_id", f.MessageID)
	addStr("kind", f.Kind)
	if f.Component != "" {
		out = append(out, slog.String("component", f.Component))
	}
	return out
}
