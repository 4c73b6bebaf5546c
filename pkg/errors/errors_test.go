package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("current_value", "current value must not be negative")

	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, GetStatusCode(err))
	assert.Equal(t, "current_value", err.Details["field"])
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Ring", "abc")
	wrapped := fmt.Errorf("get ring: %w", err)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "Ring not found", err.Message)
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
}

func TestWrapExternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := WrapExternal(cause, "trade_execution", CodeTradeExecution)

	assert.True(t, IsExternal(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, http.StatusBadGateway, GetStatusCode(err))
	assert.Equal(t, CodeTradeExecution, GetCode(err))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"no rows", sql.ErrNoRows, ErrorTypeNotFound},
		{"app error", NewValidationError("", "bad"), ErrorTypeValidation},
		{"plain", errors.New("something odd"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimit, ClassifyHTTPError(http.StatusTooManyRequests))
	assert.Equal(t, ErrorTypeNotFound, ClassifyHTTPError(http.StatusNotFound))
	assert.True(t, IsTransient(ClassifyHTTPError(http.StatusServiceUnavailable)))
}

func TestDefaultsForForeignErrors(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, CodeUnknownError, GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
	assert.Equal(t, ErrorTypeInternal, GetType(err))
}
