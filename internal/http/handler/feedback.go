package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"beacon.app/feedback/internal/http/dto"
	"beacon.app/feedback/internal/http/middleware"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/service"
)

// maxFeedbackBody leaves room for the base64 screenshot and the JSON around it.
const maxFeedbackBody = service.MaxScreenshotBytes*4/3 + 64<<10

type FeedbackHandler struct {
	intake      service.IntakeService
	traceHeader string
}

func NewFeedbackHandler(intake service.IntakeService, traceHeader string) *FeedbackHandler {
	return &FeedbackHandler{
		intake:      intake,
		traceHeader: traceHeader,
	}
}

func (h *FeedbackHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	app, ok := middleware.App(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, dto.CodeInvalidAppToken, "missing app token")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFeedbackBody)

	var payload model.FeedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, "feedback too large")
			return
		}
		slog.WarnContext(ctx, "invalid feedback request", "error", err)
		abortWithError(c, http.StatusBadRequest, dto.CodeInvalidRequest, "invalid feedback payload")
		return
	}

	sid, ok := sessionID(c)
	if !ok {
		slog.InfoContext(ctx, "ignoring malformed session header")
	}

	params := service.IntakeParams{
		App:       app,
		SessionID: sid,
		Payload:   payload,
	}
	if traceID := h.traceID(c); traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.intake.Submit(ctx, params)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.FeedbackResult{ID: result.Report.ID, Status: true})
}

func (h *FeedbackHandler) traceID(c *gin.Context) string {
	if h.traceHeader != "" {
		if traceID := c.GetHeader(h.traceHeader); traceID != "" {
			return traceID
		}
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func (h *FeedbackHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthRequired):
		abortWithError(c, http.StatusUnauthorized, dto.CodeAuthRequired, "login required to send feedback")
	case errors.Is(err, service.ErrScreenshotTooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, err.Error())
	case errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrEmptyReport),
		errors.Is(err, service.ErrInvalidScreenshot):
		abortWithError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
	default:
		slog.ErrorContext(c.Request.Context(), "failed to accept feedback", "error", err)
		abortWithError(c, http.StatusInternalServerError, dto.CodeInternal, "failed to accept feedback")
	}
}
