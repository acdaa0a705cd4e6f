package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/internal/http/dto"
	"beacon.app/feedback/internal/model"
	"beacon.app/feedback/internal/service"
)

const appContextKey = "beacon.app"

// RequireApp authenticates the bearer app token and stores the app on the
// gin context.
func RequireApp(apps service.AppService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error(dto.CodeInvalidAppToken, "missing app token"))
			return
		}

		app, err := apps.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, service.ErrInvalidAppToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error(dto.CodeInvalidAppToken, "invalid app token"))
				return
			}
			slog.ErrorContext(ctx, "failed to authenticate app", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Error(dto.CodeInternal, "internal server error"))
			return
		}

		ctx = logger.WithLogFields(ctx, logger.LogFields{AppID: logger.Ptr(app.ID)})
		c.Request = c.Request.WithContext(ctx)
		c.Set(appContextKey, app)
		c.Next()
	}
}

// App returns the app stored by RequireApp.
func App(c *gin.Context) (*model.App, bool) {
	value, ok := c.Get(appContextKey)
	if !ok {
		return nil, false
	}
	app, ok := value.(*model.App)
	return app, ok && app != nil
}
