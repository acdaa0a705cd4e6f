package router

import (
	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/handler"
	"beacon.app/feedback/internal/http/middleware"
	"beacon.app/feedback/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
	Ready           map[string]handler.Pinger
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	health := handler.NewHealthHandler(cfg.Ready)
	router.GET("/health", health.Live)
	router.GET("/ready", health.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireApp(services.Apps()))
	{
		appHandler := handler.NewAppHandler(services.Apps())
		v1.GET("/config", appHandler.Config)

		authHandler := handler.NewAuthHandler(services.Auth())
		AuthRouter(v1.Group("/auth"), authHandler)

		feedbackHandler := handler.NewFeedbackHandler(services.Intake(), cfg.TraceHeaderName)
		FeedbackRouter(v1.Group("/feedback"), feedbackHandler)
	}
}
