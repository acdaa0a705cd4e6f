package handler

import (
	"github.com/gin-gonic/gin"

	"beacon.app/feedback/common/id"
	"beacon.app/feedback/internal/http/dto"
)

const sessionIDHeader = "X-Session-ID"

func abortWithError(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, dto.Error(code, message))
}

// sessionID reads the optional session header. ok is false when the header
// is present but malformed.
func sessionID(c *gin.Context) (sid *int64, ok bool) {
	raw := c.GetHeader(sessionIDHeader)
	if raw == "" {
		return nil, true
	}
	parsed, err := id.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
