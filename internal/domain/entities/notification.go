package entities

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string
type NotificationChannel string
type NotificationPriority string

const (
	NotificationTypeAllocation NotificationType = "allocation"
	NotificationTypePortfolio  NotificationType = "portfolio"

	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelInApp NotificationChannel = "in_app"

	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// Notification tells a user about a change in one of their rings.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	RingID    uuid.UUID              `json:"ring_id"`
	Type      NotificationType       `json:"type"`
	Channel   NotificationChannel    `json:"channel"`
	Priority  NotificationPriority   `json:"priority"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	SentAt    *time.Time             `json:"sent_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// UserPreference holds the delivery switches a user has set. Critical
// notifications ignore them.
type UserPreference struct {
	UserID             uuid.UUID `json:"user_id"`
	EmailNotifications bool      `json:"email_notifications"`
	PushNotifications  bool      `json:"push_notifications"`
	PortfolioUpdates   bool      `json:"portfolio_updates"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultUserPreference is what a user who never set preferences gets.
func DefaultUserPreference(userID uuid.UUID) *UserPreference {
	return &UserPreference{
		UserID:             userID,
		EmailNotifications: true,
		PushNotifications:  true,
		PortfolioUpdates:   true,
	}
}

// UpdatePreferencesRequest changes only the switches it carries.
type UpdatePreferencesRequest struct {
	EmailNotifications *bool `json:"email_notifications,omitempty"`
	PushNotifications  *bool `json:"push_notifications,omitempty"`
	PortfolioUpdates   *bool `json:"portfolio_updates,omitempty"`
}
