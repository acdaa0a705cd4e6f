package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"beacon.app/feedback/internal/http/dto"
)

// Recovery answers a panicking handler with the 5000 error envelope. If the
// handler already started writing, the connection is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}

			slog.ErrorContext(c.Request.Context(), "handler panicked",
				"panic", r,
				"route", c.FullPath(),
				"stack", string(debug.Stack()))

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Error(dto.CodeInternal, "internal server error"))
		}()
		c.Next()
	}
}
