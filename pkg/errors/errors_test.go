package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrConflict, ErrRateLimited, ErrServiceUnavail, ErrInternal, ErrTransport,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "connection reset")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "pet not found"}
	assert.Equal(t, "NOT_FOUND: pet not found", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
}

// --- Constructors ---

func TestNotFound(t *testing.T) {
	err := NotFound("pet", "p1")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "pet")
	assert.Contains(t, err.Message, "p1")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, IsNotFound(err))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("name is required")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "name is required", err.Message)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTransport_WrapsCause(t *testing.T) {
	err := Transport(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, err.Message)
	assert.Equal(t, 0, HTTPStatus(err))
}

// --- Status classification ---

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
		code     string
	}{
		{http.StatusNotFound, ErrNotFound, "NOT_FOUND"},
		{http.StatusBadRequest, ErrInvalidInput, "INVALID_INPUT"},
		{http.StatusUnprocessableEntity, ErrInvalidInput, "INVALID_INPUT"},
		{http.StatusUnauthorized, ErrUnauthorized, "UNAUTHORIZED"},
		{http.StatusForbidden, ErrForbidden, "FORBIDDEN"},
		{http.StatusConflict, ErrConflict, "CONFLICT"},
		{http.StatusTooManyRequests, ErrRateLimited, "RATE_LIMITED"},
		{http.StatusServiceUnavailable, ErrServiceUnavail, "SERVICE_UNAVAILABLE"},
		{http.StatusBadGateway, ErrInternal, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "msg")
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "msg", err.Message)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestFromStatus_UnknownClientError(t *testing.T) {
	err := FromStatus(http.StatusTeapot, "")
	assert.Equal(t, http.StatusTeapot, err.Status)
	assert.Nil(t, err.Err)
}

// --- UserMessage ---

func TestUserMessage_UsesPayloadMessage(t *testing.T) {
	err := fmt.Errorf("login: %w", FromStatus(http.StatusUnauthorized, "Invalid email or password"))
	assert.Equal(t, "Invalid email or password", UserMessage(err, "Login failed"))
}

func TestUserMessage_FallsBack(t *testing.T) {
	assert.Equal(t, "Login failed", UserMessage(errors.New("boom"), "Login failed"))
	assert.Equal(t, "Login failed", UserMessage(FromStatus(http.StatusBadGateway, ""), "Login failed"))
	assert.Equal(t, "Login failed", UserMessage(Transport(errors.New("dial")), "Login failed"))
}

func TestHTTPStatus_PlainSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}
