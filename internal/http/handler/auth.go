package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/dto"
	"beacon.app/feedback/internal/service"
)

type AuthHandler struct {
	auth service.AuthService
}

func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid login request", "error", err)
		abortWithError(c, http.StatusBadRequest, dto.CodeInvalidRequest, "email and password are required")
		return
	}

	user, session, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			abortWithError(c, http.StatusUnauthorized, dto.CodeInvalidCredentials, "The email or password you entered is not valid")
			return
		}
		slog.ErrorContext(ctx, "login failed", "error", err)
		abortWithError(c, http.StatusInternalServerError, dto.CodeInternal, "login failed")
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		SessionID: strconv.FormatInt(session.ID, 10),
		ExpiresAt: session.ExpiresAt,
		User:      *user,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	sid, ok := sessionID(c)
	if !ok || sid == nil {
		abortWithError(c, http.StatusBadRequest, dto.CodeInvalidRequest, "missing or invalid session")
		return
	}

	if err := h.auth.Logout(ctx, *sid); err != nil {
		slog.ErrorContext(ctx, "logout failed", "error", err)
		abortWithError(c, http.StatusInternalServerError, dto.CodeInternal, "logout failed")
		return
	}

	c.Status(http.StatusNoContent)
}
