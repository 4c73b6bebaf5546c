package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

const preferencesTable = "notification_preferences"

// PreferenceRepository stores notification preferences in PostgreSQL.
type PreferenceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPreferenceRepository(db *sqlx.DB, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{db: db, logger: logger}
}

type preferenceRow struct {
	UserID             uuid.UUID `db:"user_id"`
	EmailNotifications bool      `db:"email_notifications"`
	PushNotifications  bool      `db:"push_notifications"`
	PortfolioUpdates   bool      `db:"portfolio_updates"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r *PreferenceRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*entities.UserPreference, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("select", preferencesTable, time.Since(start).Seconds()) }()

	var row preferenceRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, email_notifications, push_notifications, portfolio_updates, updated_at
		FROM notification_preferences
		WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Notification preferences", userID.String())
	}
	if err != nil {
		r.logger.Error("Failed to get notification preferences", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}

	return &entities.UserPreference{
		UserID:             row.UserID,
		EmailNotifications: row.EmailNotifications,
		PushNotifications:  row.PushNotifications,
		PortfolioUpdates:   row.PortfolioUpdates,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}

func (r *PreferenceRepository) Save(ctx context.Context, pref *entities.UserPreference) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("upsert", preferencesTable, time.Since(start).Seconds()) }()

	query := `
		INSERT INTO notification_preferences (
			user_id, email_notifications, push_notifications, portfolio_updates, updated_at
		) VALUES (
			:user_id, :email_notifications, :push_notifications, :portfolio_updates, :updated_at
		)
		ON CONFLICT (user_id) DO UPDATE SET
			email_notifications = EXCLUDED.email_notifications,
			push_notifications = EXCLUDED.push_notifications,
			portfolio_updates = EXCLUDED.portfolio_updates,
			updated_at = EXCLUDED.updated_at`

	row := preferenceRow{
		UserID:             pref.UserID,
		EmailNotifications: pref.EmailNotifications,
		PushNotifications:  pref.PushNotifications,
		PortfolioUpdates:   pref.PortfolioUpdates,
		UpdatedAt:          pref.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.logger.Error("Failed to save notification preferences", zap.Error(err), zap.String("user_id", pref.UserID.String()))
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}
