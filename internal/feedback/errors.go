package feedback

import "errors"

var (
	ErrPermissionGateMissing = errors.New("permission gate not configured")
	ErrSubmissionInProgress  = errors.New("feedback submission already in progress")
	ErrNoCaptureSource       = errors.New("no screen capture source configured")
)
