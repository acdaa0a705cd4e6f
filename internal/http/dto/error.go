package dto

import "beacon.app/feedback/internal/model"

// Business error codes carried in the error envelope.
const (
	CodeInvalidRequest     = 4000
	CodeInvalidAppToken    = 4001
	CodeAuthRequired       = 4002
	CodeInvalidCredentials = 4003
	CodeSessionExpired     = 4004
	CodePayloadTooLarge    = 4013
	CodeInternal           = 5000
	CodeUnavailable        = 5003
)

func Error(code int, message string) model.ErrorEnvelope {
	return model.ErrorEnvelope{
		Status: false,
		Error: model.ErrorBody{
			Code:    code,
			Message: message,
		},
	}
}
