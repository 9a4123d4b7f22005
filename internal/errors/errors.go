package errors

import (
	"errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeTransport         ErrCode = "TRANSPORT_ERROR"
	ErrCodeMissingIdentifier ErrCode = "MISSING_IDENTIFIER"
	ErrCodeUnexpectedStatus  ErrCode = "UNEXPECTED_STATUS"
	ErrCodeMalformedResponse ErrCode = "MALFORMED_RESPONSE"
	ErrCodeNotFound          ErrCode = "NOT_FOUND"
	ErrCodeBadRequest        ErrCode = "BAD_REQUEST"
	ErrCodeInternal          ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewTransportError creates an error for a failed remote call.
// status is the HTTP status code, or 0 when no response was received.
func NewTransportError(method, url string, status int, err error) *AppError {
	msg := fmt.Sprintf("%s %s failed", method, url)
	if status != 0 {
		msg = fmt.Sprintf("%s %s returned status %d", method, url, status)
	}
	return &AppError{
		Code:    ErrCodeTransport,
		Message: msg,
		Err:     err,
	}
}

// NewMissingIdentifierError creates an error for a submission without a report id
func NewMissingIdentifierError(response map[string]interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeMissingIdentifier,
		Message: fmt.Sprintf("no report id returned: %v", response),
	}
}

// NewUnexpectedStatusError creates an error for a status outside the known set
func NewUnexpectedStatusError(reportID, status string) *AppError {
	return &AppError{
		Code:    ErrCodeUnexpectedStatus,
		Message: fmt.Sprintf("report %s failed: %q", reportID, status),
	}
}

// NewMalformedResponseError creates an error for a response that cannot be read
func NewMalformedResponseError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeMalformedResponse,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	return CodeOf(err) == ErrCodeTransport
}

// IsMissingIdentifier checks if the error is a missing identifier error
func IsMissingIdentifier(err error) bool {
	return CodeOf(err) == ErrCodeMissingIdentifier
}

// IsUnexpectedStatus checks if the error is an unexpected status error
func IsUnexpectedStatus(err error) bool {
	return CodeOf(err) == ErrCodeUnexpectedStatus
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
