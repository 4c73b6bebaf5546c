package repositories

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
)

// MemoryPreferenceRepository keeps notification preferences in a map.
type MemoryPreferenceRepository struct {
	mu     sync.RWMutex
	prefs  map[uuid.UUID]entities.UserPreference
	logger *zap.Logger
}

func NewMemoryPreferenceRepository(logger *zap.Logger) *MemoryPreferenceRepository {
	return &MemoryPreferenceRepository{
		prefs:  make(map[uuid.UUID]entities.UserPreference),
		logger: logger,
	}
}

func (r *MemoryPreferenceRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*entities.UserPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pref, ok := r.prefs[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("Notification preferences", userID.String())
	}
	return &pref, nil
}

func (r *MemoryPreferenceRepository) Save(ctx context.Context, pref *entities.UserPreference) error {
	if pref == nil || pref.UserID == uuid.Nil {
		return apperrors.NewValidationError("user_id", "user id is required")
	}

	r.mu.Lock()
	r.prefs[pref.UserID] = *pref
	r.mu.Unlock()

	r.logger.Debug("Notification preferences stored", zap.String("user_id", pref.UserID.String()))
	return nil
}
