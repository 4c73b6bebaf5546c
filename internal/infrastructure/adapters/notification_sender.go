package adapters

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// InAppNotificationSender delivers allocation notifications to the in-app
// channel by emitting them as structured log events for the feed consumer.
type InAppNotificationSender struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// NewInAppNotificationSender creates a new in-app notification sender
func NewInAppNotificationSender(logger *zap.Logger) *InAppNotificationSender {
	return &InAppNotificationSender{
		logger: logger,
		tracer: otel.Tracer("notification-sender"),
	}
}

// Send delivers the notification unless the user has opted out of portfolio
// updates. prefs may be nil, meaning defaults apply.
func (s *InAppNotificationSender) Send(ctx context.Context, notification *entities.Notification, prefs *entities.UserPreference) error {
	_, span := s.tracer.Start(ctx, "notification.send", trace.WithAttributes(
		attribute.String("user_id", notification.UserID.String()),
		attribute.String("type", string(notification.Type)),
		attribute.String("priority", string(notification.Priority)),
	))
	defer span.End()

	if prefs != nil && !prefs.PortfolioUpdates && notification.Priority != entities.PriorityCritical {
		s.logger.Debug("Notification suppressed by user preference",
			zap.String("user_id", notification.UserID.String()),
			zap.String("title", notification.Title))
		span.SetAttributes(attribute.Bool("suppressed", true))
		return nil
	}

	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	sentAt := time.Now().UTC()
	notification.SentAt = &sentAt

	s.logger.Info("Notification delivered",
		zap.String("notification_id", notification.ID.String()),
		zap.String("user_id", notification.UserID.String()),
		zap.String("type", string(notification.Type)),
		zap.String("channel", string(notification.Channel)),
		zap.String("priority", string(notification.Priority)),
		zap.String("title", notification.Title),
		zap.String("message", notification.Message),
		zap.Any("data", notification.Data))
	return nil
}
