package router

import (
	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/handler"
)

func FeedbackRouter(rg *gin.RouterGroup, h *handler.FeedbackHandler) {
	rg.POST("", h.Submit)
}
