package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
)

func testRing(userID uuid.UUID, created time.Time) *entities.AllocationRing {
	return &entities.AllocationRing{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "Growth",
		Currency:  entities.CurrencyAUD,
		CreatedAt: created,
		AssetClasses: []entities.AssetClassAllocation{
			{ID: uuid.New(), Category: entities.AssetClassEquities, Name: "Shares", CurrentValue: decimal.NewFromInt(1000)},
		},
	}
}

func TestMemoryRingRepository_SaveAndGet(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	ring := testRing(uuid.New(), time.Now())
	require.NoError(t, repo.Save(ctx, ring))

	got, err := repo.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, ring, got)
	assert.NotSame(t, ring, got)
}

func TestMemoryRingRepository_ReturnsIndependentCopies(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	ring := testRing(uuid.New(), time.Now())
	require.NoError(t, repo.Save(ctx, ring))

	// mutating the caller's ring after Save must not leak into the store
	ring.AssetClasses[0].Name = "changed by caller"

	got, err := repo.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shares", got.AssetClasses[0].Name)

	got.AssetClasses[0].CurrentValue = decimal.NewFromInt(1)
	again, err := repo.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.True(t, again.AssetClasses[0].CurrentValue.Equal(decimal.NewFromInt(1000)))
}

func TestMemoryRingRepository_SaveReplaces(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	ring := testRing(uuid.New(), time.Now())
	require.NoError(t, repo.Save(ctx, ring))

	ring.Name = "Income"
	require.NoError(t, repo.Save(ctx, ring))

	got, err := repo.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, "Income", got.Name)
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryRingRepository_SaveRequiresID(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))

	err := repo.Save(context.Background(), &entities.AllocationRing{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestMemoryRingRepository_NotFound(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))

	err = repo.Delete(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryRingRepository_DeleteKeepsIndexConsistent(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rings := make([]*entities.AllocationRing, 4)
	for i := range rings {
		rings[i] = testRing(userID, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Save(ctx, rings[i]))
	}

	require.NoError(t, repo.Delete(ctx, rings[1].ID))
	assert.Equal(t, 3, repo.Count())

	// the ring moved into the freed slot is still reachable by id
	got, err := repo.GetByID(ctx, rings[3].ID)
	require.NoError(t, err)
	assert.Equal(t, rings[3].ID, got.ID)

	_, err = repo.GetByID(ctx, rings[1].ID)
	assert.True(t, apperrors.IsNotFound(err))

	listed, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, rings[0].ID, listed[0].ID)
	assert.Equal(t, rings[2].ID, listed[1].ID)
	assert.Equal(t, rings[3].ID, listed[2].ID)
}

func TestMemoryRingRepository_ListByUser(t *testing.T) {
	repo := NewMemoryRingRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	now := time.Now()
	require.NoError(t, repo.Save(ctx, testRing(alice, now)))
	require.NoError(t, repo.Save(ctx, testRing(bob, now)))
	require.NoError(t, repo.Save(ctx, testRing(alice, now.Add(time.Minute))))

	aliceRings, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, aliceRings, 2)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}
