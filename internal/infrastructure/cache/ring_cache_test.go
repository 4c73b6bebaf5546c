package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockRedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockRedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	args := m.Called(ctx, pattern)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

func (m *MockRedisClient) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRedisClient) Close() error {
	return m.Called().Error(0)
}

type MockRingRepository struct {
	mock.Mock
}

func (m *MockRingRepository) Save(ctx context.Context, ring *entities.AllocationRing) error {
	return m.Called(ctx, ring).Error(0)
}

func (m *MockRingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AllocationRing), args.Error(1)
}

func (m *MockRingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AllocationRing), args.Error(1)
}

func (m *MockRingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.AllocationRing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AllocationRing), args.Error(1)
}

func (m *MockRingRepository) List(ctx context.Context) ([]*entities.AllocationRing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AllocationRing), args.Error(1)
}

// fakeRedis is a map-backed RedisClient. onGetMiss runs once, after a Get
// misses and before the caller continues.
type fakeRedis struct {
	data      map[string][]byte
	onGetMiss func()
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		if hook := f.onGetMiss; hook != nil {
			f.onGetMiss = nil
			defer hook()
		}
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Keys(ctx context.Context, pattern string) ([]string, error) { return nil, nil }

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Close() error { return nil }

func cachedRing() *entities.AllocationRing {
	return &entities.AllocationRing{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Name:           "Balanced",
		Currency:       entities.CurrencyNZD,
		PortfolioValue: decimal.RequireFromString("125000.50"),
		AssetClasses: []entities.AssetClassAllocation{
			{
				ID:                uuid.New(),
				Category:          entities.AssetClassBonds,
				Name:              "Bonds",
				CurrentValue:      decimal.RequireFromString("125000.50"),
				CurrentPercentage: 100,
				TargetPercentage:  60,
				Variance:          40,
			},
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestCachedRingRepository_GetByID_Hit(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	data, err := encode(ring)
	require.NoError(t, err)

	client.On("Get", ctx, "ring:"+ring.ID.String()).Return(data, nil)

	got, err := cached.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, ring.ID, got.ID)
	assert.Equal(t, ring.Name, got.Name)
	assert.True(t, ring.PortfolioValue.Equal(got.PortfolioValue))
	assert.True(t, ring.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.AssetClasses, 1)
	assert.Equal(t, 40.0, got.AssetClasses[0].Variance)

	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestCachedRingRepository_GetByID_MissFillsCache(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	key := "ring:" + ring.ID.String()

	client.On("Get", ctx, key).Return(nil, ErrCacheMiss)
	repo.On("GetByID", ctx, ring.ID).Return(ring, nil)
	client.On("SetNX", ctx, key, mock.AnythingOfType("[]uint8"), time.Minute).Return(true, nil)

	got, err := cached.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Same(t, ring, got)

	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestCachedRingRepository_GetByID_RedisDownFallsThrough(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	client.On("Get", ctx, mock.Anything).Return(nil, errors.New("connection refused"))
	client.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))
	repo.On("GetByID", ctx, ring.ID).Return(ring, nil)

	got, err := cached.GetByID(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, ring.ID, got.ID)
}

func TestCachedRingRepository_GetByID_NotFoundNotCached(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	id := uuid.New()
	notFound := errors.New("ring not found")
	client.On("Get", ctx, "ring:"+id.String()).Return(nil, ErrCacheMiss)
	repo.On("GetByID", ctx, id).Return(nil, notFound)

	_, err := cached.GetByID(ctx, id)
	assert.ErrorIs(t, err, notFound)
	client.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedRingRepository_SaveWritesThrough(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	repo.On("Save", ctx, ring).Return(nil)

	var written []byte
	client.On("Set", ctx, "ring:"+ring.ID.String(), mock.AnythingOfType("[]uint8"), time.Minute).Run(func(args mock.Arguments) {
		written = args.Get(2).([]byte)
	}).Return(nil)
	client.On("Del", ctx, []string{"user_rings:" + ring.UserID.String()}).Return(nil)

	require.NoError(t, cached.Save(ctx, ring))

	var got entities.AllocationRing
	require.NoError(t, decode(written, &got))
	assert.Equal(t, ring.ID, got.ID)
	assert.True(t, ring.PortfolioValue.Equal(got.PortfolioValue))

	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestCachedRingRepository_SaveFallsBackToInvalidation(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	repo.On("Save", ctx, ring).Return(nil)
	client.On("Set", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("OOM"))
	client.On("Del", ctx, []string{"ring:" + ring.ID.String(), "user_rings:" + ring.UserID.String()}).Return(nil)

	require.NoError(t, cached.Save(ctx, ring))
	client.AssertExpectations(t)
}

func TestCachedRingRepository_StaleFillDoesNotReplaceSavedRing(t *testing.T) {
	client := newFakeRedis()
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	older := cachedRing()
	newer := older.Clone()
	newer.Name = "Balanced v2"

	// A reader missed and loaded the older version; a save lands before it
	// gets to fill the cache.
	repo.On("GetByID", ctx, older.ID).Return(older, nil).Once()
	repo.On("Save", ctx, newer).Return(nil)
	client.onGetMiss = func() {
		require.NoError(t, cached.Save(ctx, newer))
	}

	got, err := cached.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Balanced", got.Name)

	again, err := cached.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Balanced v2", again.Name)
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestCachedRingRepository_GetForUpdateBypassesCache(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	repo.On("GetForUpdate", ctx, ring.ID).Return(ring, nil)

	got, err := cached.GetForUpdate(ctx, ring.ID)
	require.NoError(t, err)
	assert.Same(t, ring, got)

	client.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedRingRepository_SaveFailureSkipsInvalidation(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	repo.On("Save", ctx, ring).Return(errors.New("db down"))

	assert.Error(t, cached.Save(ctx, ring))
	client.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
}

func TestCachedRingRepository_DeleteInvalidates(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	repo.On("GetForUpdate", ctx, ring.ID).Return(ring, nil)
	repo.On("Delete", ctx, ring.ID).Return(nil)
	client.On("Del", ctx, []string{"ring:" + ring.ID.String(), "user_rings:" + ring.UserID.String()}).Return(nil)

	require.NoError(t, cached.Delete(ctx, ring.ID))

	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestCachedRingRepository_ListByUser(t *testing.T) {
	client := new(MockRedisClient)
	repo := new(MockRingRepository)
	cached := NewCachedRingRepository(repo, client, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	ring := cachedRing()
	key := "user_rings:" + ring.UserID.String()
	client.On("Get", ctx, key).Return(nil, ErrCacheMiss).Once()
	repo.On("ListByUser", ctx, ring.UserID).Return([]*entities.AllocationRing{ring}, nil).Once()

	var stored []byte
	client.On("SetNX", ctx, key, mock.Anything, time.Minute).Run(func(args mock.Arguments) {
		stored = args.Get(2).([]byte)
	}).Return(true, nil)

	first, err := cached.ListByUser(ctx, ring.UserID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NotEmpty(t, stored)

	client.On("Get", ctx, key).Return(stored, nil).Once()

	second, err := cached.ListByUser(ctx, ring.UserID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, ring.ID, second[0].ID)
	repo.AssertNumberOfCalls(t, "ListByUser", 1)
}

func TestCacheInvalidator_TTLStrategy(t *testing.T) {
	client := new(MockRedisClient)
	inv := NewCacheInvalidator(client, zaptest.NewLogger(t), InvalidateTTL)
	ctx := context.Background()

	client.On("Expire", ctx, "ring:abc", 5*time.Second).Return(nil)
	client.On("Expire", ctx, "user_rings:u1", 5*time.Second).Return(nil)

	require.NoError(t, inv.InvalidateRing(ctx, "abc", "u1"))
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
}

func TestCacheInvalidator_InvalidateUser(t *testing.T) {
	client := new(MockRedisClient)
	inv := NewCacheInvalidator(client, zaptest.NewLogger(t), InvalidateImmediate)
	ctx := context.Background()

	client.On("Keys", ctx, "user_rings:u1*").Return([]string{"user_rings:u1"}, nil)
	client.On("Del", ctx, []string{"user_rings:u1"}).Return(nil)

	require.NoError(t, inv.InvalidateUser(ctx, "u1"))
	client.AssertExpectations(t)
}
