package dto

import (
	"time"

	"beacon.app/feedback/internal/model"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionID is a decimal string; snowflake ids do not survive a JSON float.
type LoginResponse struct {
	SessionID string     `json:"session_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}
