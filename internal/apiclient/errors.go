package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"beacon.app/feedback/internal/model"
)

const (
	msgNullError  = "Null error response"
	msgParseError = "Parse error exception"
)

// APIError is a non-2xx reply from the intake API. BusinessCode is false when
// the body could not be read as an error envelope.
type APIError struct {
	StatusCode   int
	Code         int
	Message      string
	Providers    []string
	BusinessCode bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unauthorized reports whether the request was rejected for missing or
// invalid credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// ParseError reads an error envelope body.
func ParseError(statusCode int, body []byte) *APIError {
	if len(bytes.TrimSpace(body)) == 0 {
		return &APIError{StatusCode: statusCode, Message: msgNullError}
	}

	var env model.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &APIError{StatusCode: statusCode, Message: fmt.Sprintf("%s: %v", msgParseError, err)}
	}
	if env.Error.Code == 0 && env.Error.Message == "" {
		return &APIError{StatusCode: statusCode, Message: msgNullError}
	}

	apiErr := &APIError{
		StatusCode:   statusCode,
		Code:         env.Error.Code,
		Message:      env.Error.Message,
		BusinessCode: true,
	}
	if env.Error.Data != nil {
		apiErr.Providers = env.Error.Data.Providers
	}
	return apiErr
}

// IsUnauthorized reports whether err is an APIError for rejected credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
