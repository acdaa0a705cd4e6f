package router

import (
	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/handler"
)

func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler) {
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
}
