package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
)

// MemoryRingRepository keeps rings in a dense slice with an id index. Rings
// are copied on the way in and on the way out.
type MemoryRingRepository struct {
	mu     sync.RWMutex
	rings  []*entities.AllocationRing
	index  map[uuid.UUID]int
	logger *zap.Logger
}

// NewMemoryRingRepository creates an empty in-memory ring repository
func NewMemoryRingRepository(logger *zap.Logger) *MemoryRingRepository {
	return &MemoryRingRepository{
		rings:  make([]*entities.AllocationRing, 0),
		index:  make(map[uuid.UUID]int),
		logger: logger,
	}
}

// Save inserts or replaces a ring
func (r *MemoryRingRepository) Save(ctx context.Context, ring *entities.AllocationRing) error {
	if ring == nil || ring.ID == uuid.Nil {
		return apperrors.NewValidationError("id", "ring id is required")
	}
	stored := ring.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[ring.ID]; ok {
		r.rings[i] = stored
		return nil
	}
	r.index[ring.ID] = len(r.rings)
	r.rings = append(r.rings, stored)

	r.logger.Debug("Ring stored", zap.String("ring_id", ring.ID.String()), zap.Int("rings", len(r.rings)))
	return nil
}

// GetByID returns a copy of the ring
func (r *MemoryRingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Ring", id.String())
	}
	return r.rings[i].Clone(), nil
}

// GetForUpdate is GetByID: the memory store has a single copy.
func (r *MemoryRingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	return r.GetByID(ctx, id)
}

// Delete removes the ring, moving the last ring into its slot
func (r *MemoryRingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return apperrors.NewNotFoundError("Ring", id.String())
	}
	last := len(r.rings) - 1
	if i != last {
		r.rings[i] = r.rings[last]
		r.index[r.rings[i].ID] = i
	}
	r.rings[last] = nil
	r.rings = r.rings[:last]
	delete(r.index, id)
	return nil
}

// ListByUser returns copies of the user's rings, oldest first
func (r *MemoryRingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.AllocationRing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.AllocationRing, 0)
	for _, ring := range r.rings {
		if ring.UserID == userID {
			out = append(out, ring.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// List returns copies of every ring, oldest first
func (r *MemoryRingRepository) List(ctx context.Context) ([]*entities.AllocationRing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.AllocationRing, 0, len(r.rings))
	for _, ring := range r.rings {
		out = append(out, ring.Clone())
	}
	sortByCreation(out)
	return out, nil
}

// Count returns the number of stored rings
func (r *MemoryRingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rings)
}

// sortByCreation orders rings by creation time, then id, so listings do not
// depend on slot order after deletes.
func sortByCreation(rings []*entities.AllocationRing) {
	sort.SliceStable(rings, func(i, j int) bool {
		if !rings[i].CreatedAt.Equal(rings[j].CreatedAt) {
			return rings[i].CreatedAt.Before(rings[j].CreatedAt)
		}
		return rings[i].ID.String() < rings[j].ID.String()
	})
}
