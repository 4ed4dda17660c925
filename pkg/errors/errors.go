package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrRateLimited    = errors.New("rate limited")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrInternal       = errors.New("internal error")
	ErrTransport      = errors.New("transport failure")
)

// AppError represents a classified failure. Message is the human-readable text
// suitable for display; it may be empty when the remote payload carried none.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Transport wraps a failure that happened before any response was received
// (dial, TLS, timeout, circuit open). It carries no display message.
func Transport(err error) *AppError {
	return &AppError{
		Code:   "TRANSPORT_ERROR",
		Status: 0,
		Err:    fmt.Errorf("%w: %w", ErrTransport, err),
	}
}

// FromStatus classifies a non-2xx response by its status code. The message is
// kept verbatim so it can be shown to the user.
func FromStatus(status int, message string) *AppError {
	appErr := &AppError{
		Code:    http.StatusText(status),
		Message: message,
		Status:  status,
	}

	switch {
	case status == http.StatusNotFound:
		appErr.Code, appErr.Err = "NOT_FOUND", ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		appErr.Code, appErr.Err = "INVALID_INPUT", ErrInvalidInput
	case status == http.StatusUnauthorized:
		appErr.Code, appErr.Err = "UNAUTHORIZED", ErrUnauthorized
	case status == http.StatusForbidden:
		appErr.Code, appErr.Err = "FORBIDDEN", ErrForbidden
	case status == http.StatusConflict:
		appErr.Code, appErr.Err = "CONFLICT", ErrConflict
	case status == http.StatusTooManyRequests:
		appErr.Code, appErr.Err = "RATE_LIMITED", ErrRateLimited
	case status == http.StatusServiceUnavailable:
		appErr.Code, appErr.Err = "SERVICE_UNAVAILABLE", ErrServiceUnavail
	case status >= 500:
		appErr.Code, appErr.Err = "INTERNAL_ERROR", ErrInternal
	}

	return appErr
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error, or 0 when the
// error never reached the server.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTransport):
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the human-readable message carried by err, or fallback
// when err has none.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
