package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/domain/repositories"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/logger"
)

// NotificationSender delivers a notification to a user.
type NotificationSender interface {
	Send(ctx context.Context, notification *entities.Notification, prefs *entities.UserPreference) error
}

// NotificationManager turns ring state transitions into user notifications.
type NotificationManager struct {
	sender NotificationSender
	prefs  repositories.PreferenceRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewNotificationManager creates a new notification manager
func NewNotificationManager(sender NotificationSender, logger *logger.Logger) *NotificationManager {
	return &NotificationManager{
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// WithPreferences makes the manager look up each recipient's preferences
// before sending.
func (nm *NotificationManager) WithPreferences(prefs repositories.PreferenceRepository) *NotificationManager {
	nm.prefs = prefs
	return nm
}

// GetPreferences returns the user's notification preferences, or the defaults
// when they never saved any.
func (nm *NotificationManager) GetPreferences(ctx context.Context, userID uuid.UUID) (*entities.UserPreference, error) {
	if nm.prefs == nil {
		return entities.DefaultUserPreference(userID), nil
	}
	pref, err := nm.prefs.GetByUser(ctx, userID)
	if apperrors.IsNotFound(err) {
		return entities.DefaultUserPreference(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notification preferences: %w", err)
	}
	return pref, nil
}

// UpdatePreferences merges req into the user's current preferences and saves them.
func (nm *NotificationManager) UpdatePreferences(ctx context.Context, userID uuid.UUID, req entities.UpdatePreferencesRequest) (*entities.UserPreference, error) {
	if nm.prefs == nil {
		return nil, apperrors.NewInternalError("notification preferences are not configured")
	}
	pref, err := nm.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.EmailNotifications != nil {
		pref.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		pref.PushNotifications = *req.PushNotifications
	}
	if req.PortfolioUpdates != nil {
		pref.PortfolioUpdates = *req.PortfolioUpdates
	}
	pref.UpdatedAt = nm.now().UTC()

	if err := nm.prefs.Save(ctx, pref); err != nil {
		return nil, fmt.Errorf("save notification preferences: %w", err)
	}
	nm.logger.Infow("Notification preferences updated",
		"user_id", userID.String(),
		"portfolio_updates", pref.PortfolioUpdates)
	return pref, nil
}

// NotifyTransitions compares two snapshots of the same ring and sends a
// notification when rebalancing becomes needed or the ring becomes non-compliant.
// A nil before stands for a ring that did not exist yet.
// Delivery failures are logged and never fail the mutation that caused them.
func (nm *NotificationManager) NotifyTransitions(ctx context.Context, before, after *entities.AllocationRing) {
	if nm == nil || nm.sender == nil || after == nil {
		return
	}

	if after.RebalancingNeeded && (before == nil || !before.RebalancingNeeded) {
		if err := nm.NotifyRebalancingNeeded(ctx, after); err != nil {
			nm.logger.Warnw("Failed to send rebalancing notification", "error", err, "ring_id", after.ID.String())
		}
	}

	wasNonCompliant := before != nil && before.ComplianceStatus.Overall == entities.ComplianceNonCompliant
	if after.ComplianceStatus.Overall == entities.ComplianceNonCompliant && !wasNonCompliant {
		if err := nm.NotifyNonCompliant(ctx, after); err != nil {
			nm.logger.Warnw("Failed to send compliance notification", "error", err, "ring_id", after.ID.String())
		}
	}
}

// NotifyRebalancingNeeded tells the ring owner that the ring has drifted past
// the rebalancing threshold.
func (nm *NotificationManager) NotifyRebalancingNeeded(ctx context.Context, ring *entities.AllocationRing) error {
	maxDrift, _ := MaxAbsVariance(ring.AssetClasses)

	n := nm.newNotification(ring, entities.PriorityHigh)
	n.Title = "Rebalancing Recommended"
	n.Message = fmt.Sprintf("%s has drifted %s from its target allocation. Review the suggested trades to bring it back in line.",
		ring.Name, formatPercent(maxDrift))
	n.Data["event"] = "rebalancing_needed"
	n.Data["max_drift"] = maxDrift
	n.Data["suggestions"] = openSuggestions(ring)

	return nm.send(ctx, n)
}

// NotifyNonCompliant tells the ring owner that a critical constraint is broken.
func (nm *NotificationManager) NotifyNonCompliant(ctx context.Context, ring *entities.AllocationRing) error {
	n := nm.newNotification(ring, entities.PriorityCritical)
	n.Title = "Allocation Constraint Breached"
	n.Message = fmt.Sprintf("%s breaks %d allocation rule(s). Rebalance to restore compliance.",
		ring.Name, len(ring.ComplianceStatus.Issues))
	n.Data["event"] = "non_compliant"
	n.Data["issues"] = len(ring.ComplianceStatus.Issues)

	return nm.send(ctx, n)
}

func (nm *NotificationManager) newNotification(ring *entities.AllocationRing, priority entities.NotificationPriority) *entities.Notification {
	return &entities.Notification{
		ID:       uuid.New(),
		UserID:   ring.UserID,
		RingID:   ring.ID,
		Type:     entities.NotificationTypeAllocation,
		Channel:  entities.ChannelInApp,
		Priority: priority,
		Data: map[string]interface{}{
			"ring_id":         ring.ID.String(),
			"portfolio_value": ring.PortfolioValue.String(),
			"currency":        string(ring.Currency),
		},
		CreatedAt: nm.now().UTC(),
	}
}

func (nm *NotificationManager) send(ctx context.Context, n *entities.Notification) error {
	var pref *entities.UserPreference
	if nm.prefs != nil {
		p, err := nm.prefs.GetByUser(ctx, n.UserID)
		switch {
		case err == nil:
			pref = p
		case !apperrors.IsNotFound(err):
			// deliver with defaults rather than drop the notification
			nm.logger.Warnw("Failed to load notification preferences", "error", err, "user_id", n.UserID.String())
		}
	}

	if err := nm.sender.Send(ctx, n, pref); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	nm.logger.Infow("Allocation notification sent",
		"user_id", n.UserID.String(),
		"title", n.Title,
		"priority", string(n.Priority))
	return nil
}

func openSuggestions(ring *entities.AllocationRing) int {
	n := 0
	for _, sg := range ring.RebalancingSuggestions {
		if !sg.Status.IsResolved() {
			n++
		}
	}
	return n
}
