package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// PreferenceService reads and changes a user's notification preferences
type PreferenceService interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*entities.UserPreference, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, req entities.UpdatePreferencesRequest) (*entities.UserPreference, error)
}

// NotificationHandlers serves the caller's notification preferences
type NotificationHandlers struct {
	service PreferenceService
	logger  *zap.Logger
}

// NewNotificationHandlers creates new notification handlers
func NewNotificationHandlers(service PreferenceService, logger *zap.Logger) *NotificationHandlers {
	return &NotificationHandlers{
		service: service,
		logger:  logger,
	}
}

// GetPreferences returns the caller's notification preferences
// @Summary Get notification preferences
// @Tags notifications
// @Produce json
// @Success 200 {object} entities.UserPreference
// @Failure 401 {object} entities.ErrorResponse
// @Security UserID
// @Router /notifications/preferences [get]
func (h *NotificationHandlers) GetPreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	pref, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences changes the switches present in the body
// @Summary Update notification preferences
// @Description Critical alerts are delivered regardless of portfolio_updates.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body entities.UpdatePreferencesRequest true "Switches to change"
// @Success 200 {object} entities.UserPreference
// @Failure 400 {object} entities.ErrorResponse
// @Security UserID
// @Router /notifications/preferences [put]
func (h *NotificationHandlers) UpdatePreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	var req entities.UpdatePreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	pref, err := h.service.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.Warn("Failed to update notification preferences", zap.String("user_id", userID.String()), zap.Error(err))
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
