package apierror

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrAuth           ErrorCode = "AUTH_ERROR"
	ErrRemoteAPI      ErrorCode = "REMOTE_API_ERROR"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf extracts the error code from err, unwrapping as needed. Errors that
// are not APIErrors classify as internal.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternalServer
}

// IsAuthError reports whether err carries the distinguished auth-error class.
// Auth errors halt an entire job: the integration's credentials are revoked or
// repeatedly rejected and every further remote call is doomed.
func IsAuthError(err error) bool {
	return CodeOf(err) == ErrAuth
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}
