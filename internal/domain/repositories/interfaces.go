package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// RingRepository defines the interface for allocation ring persistence.
// Implementations hand out independent copies: mutating a returned ring never
// changes stored state until it is passed back to Save.
//
// GetByID may be served from a cache or a read replica. GetForUpdate always
// reads the authoritative copy and backs every load-modify-save cycle.
type RingRepository interface {
	Save(ctx context.Context, ring *entities.AllocationRing) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.AllocationRing, error)
	List(ctx context.Context) ([]*entities.AllocationRing, error)
}

// PreferenceRepository stores per-user notification preferences. GetByUser
// returns a NotFound error for users who never saved any.
type PreferenceRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*entities.UserPreference, error)
	Save(ctx context.Context, pref *entities.UserPreference) error
}
