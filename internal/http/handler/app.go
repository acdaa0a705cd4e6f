package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/dto"
	"beacon.app/feedback/internal/http/middleware"
	"beacon.app/feedback/internal/service"
)

type AppHandler struct {
	apps service.AppService
}

func NewAppHandler(apps service.AppService) *AppHandler {
	return &AppHandler{apps: apps}
}

// Config returns the remote configuration clients consult before sending.
func (h *AppHandler) Config(c *gin.Context) {
	app, ok := middleware.App(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, dto.CodeInvalidAppToken, "missing app token")
		return
	}
	c.JSON(http.StatusOK, h.apps.Config(app))
}
