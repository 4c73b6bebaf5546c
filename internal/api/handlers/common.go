package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/tracing"
)

// getUserID extracts and validates user ID from context
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}

	switch v := userIDVal.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("invalid user ID type in context")
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// parseUUIDParam reads a path parameter as a UUID, responding 400 when it is not one
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, fmt.Sprintf("%s must be a UUID", name), map[string]interface{}{"field": name})
		return uuid.Nil, false
	}
	return id, true
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	if reqID := getRequestID(c); reqID != "" {
		details["request_id"] = reqID
	}
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondAppError maps a service error onto an HTTP response
func respondAppError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		tracing.RecordError(c, err)
		_ = c.Error(err)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondInternalError(c, "An internal server error occurred")
		return
	}

	var details map[string]interface{}
	if len(appErr.Details) > 0 {
		details = make(map[string]interface{}, len(appErr.Details))
		for k, v := range appErr.Details {
			details[k] = v
		}
	}
	respondError(c, status, appErr.Code, appErr.Message, details)
}

// statusFor picks the response status from the error type. Upstream status
// codes carried by external errors are not passed through.
func statusFor(err error) int {
	switch apperrors.GetType(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	case apperrors.ErrorTypeTransient:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondUnauthorized sends an unauthorized error
func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string, details map[string]interface{}) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message, details)
}

// respondInternalError sends an internal server error
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}
