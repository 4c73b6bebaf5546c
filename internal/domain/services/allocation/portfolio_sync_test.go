package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func holding(symbol string, category entities.AssetClassCategory, region string, domestic bool, value int64) entities.PortfolioHolding {
	return entities.PortfolioHolding{
		Symbol:     symbol,
		AssetClass: category,
		Region:     region,
		IsDomestic: domestic,
		Value:      decimal.NewFromInt(value),
	}
}

func TestCreateDefaultRing(t *testing.T) {
	provider := new(MockPortfolioDataProvider)
	svc := newTestService(t, provider, nil)
	ctx := context.Background()
	userID := uuid.New()

	provider.On("GetPortfolio", ctx, userID, "pf-1").Return(&entities.PortfolioSnapshot{
		PortfolioID: "pf-1",
		UserID:      userID,
		Currency:    entities.CurrencyNZD,
		Holdings: []entities.PortfolioHolding{
			holding("VTI", entities.AssetClassETFs, "US", false, 40000),
			holding("FNZ", entities.AssetClassEquities, "NZ", true, 30000),
			holding("VEU", entities.AssetClassETFs, "Global", false, 20000),
			holding("CASH", entities.AssetClassCash, "NZ", true, 10000),
		},
	}, nil)

	ring, err := svc.CreateDefaultRing(ctx, entities.CreateDefaultRingRequest{UserID: userID, PortfolioID: "pf-1"})
	require.NoError(t, err)
	provider.AssertExpectations(t)

	assert.Equal(t, "Portfolio allocation", ring.Name)
	assert.Equal(t, "pf-1", ring.PortfolioID)
	assert.Equal(t, entities.CurrencyNZD, ring.Currency)
	assert.True(t, ring.PortfolioValue.Equal(decimal.NewFromInt(100000)))

	require.Len(t, ring.AssetClasses, 3)
	assert.Equal(t, "Equities", ring.AssetClasses[0].Name)
	assert.Equal(t, "ETFs", ring.AssetClasses[1].Name)
	assert.Equal(t, "Cash", ring.AssetClasses[2].Name)
	assert.InDelta(t, 60, ring.AssetClasses[1].TargetPercentage, 1e-9)
	assert.False(t, ring.RebalancingNeeded)

	etfs := ring.AssetClasses[1]
	require.Len(t, etfs.GeographicBreakdown, 2)
	assert.True(t, etfs.GeographicBreakdown[0].FIFApplicable)
	require.Len(t, etfs.TopHoldings, 2)
	assert.Equal(t, "VTI", etfs.TopHoldings[0].Symbol)

	require.NotNil(t, ring.TaxInsights.FIF)
	assert.True(t, ring.TaxInsights.FIF.ExceedsThreshold)
}

func TestCreateDefaultRing_ProviderFailures(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("unknown portfolio", func(t *testing.T) {
		provider := new(MockPortfolioDataProvider)
		svc := newTestService(t, provider, nil)
		provider.On("GetPortfolio", ctx, userID, "missing").Return(nil, nil)

		_, err := svc.CreateDefaultRing(ctx, entities.CreateDefaultRingRequest{UserID: userID, PortfolioID: "missing"})
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("provider error", func(t *testing.T) {
		provider := new(MockPortfolioDataProvider)
		svc := newTestService(t, provider, nil)
		provider.On("GetPortfolio", ctx, userID, "pf-1").Return(nil, errors.New("timeout"))

		_, err := svc.CreateDefaultRing(ctx, entities.CreateDefaultRingRequest{UserID: userID, PortfolioID: "pf-1"})
		assert.True(t, apperrors.IsExternal(err))
		assert.Equal(t, apperrors.CodePortfolioProvider, appErrorCode(t, err))
	})

	t.Run("not configured", func(t *testing.T) {
		svc := newTestService(t, nil, nil)
		_, err := svc.CreateDefaultRing(ctx, entities.CreateDefaultRingRequest{UserID: userID, PortfolioID: "pf-1"})
		assert.Equal(t, apperrors.CodeInternalError, appErrorCode(t, err))
	})

	t.Run("missing portfolio id", func(t *testing.T) {
		svc := newTestService(t, nil, nil)
		_, err := svc.CreateDefaultRing(ctx, entities.CreateDefaultRingRequest{UserID: userID})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestRefreshValuations(t *testing.T) {
	provider := new(MockPortfolioDataProvider)
	svc := newTestService(t, provider, nil)
	ctx := context.Background()

	req := balancedRequest(uuid.New(), 50000, 50000)
	req.PortfolioID = "pf-1"
	ring, err := svc.CreateRing(ctx, req)
	require.NoError(t, err)

	provider.On("GetPortfolio", ctx, ring.UserID, "pf-1").Return(&entities.PortfolioSnapshot{
		Holdings: []entities.PortfolioHolding{
			holding("VAS", entities.AssetClassEquities, "AU", true, 80000),
			holding("VAF", entities.AssetClassBonds, "AU", true, 20000),
			holding("BTC", entities.AssetClassCrypto, "", false, 5000),
		},
	}, nil)

	refreshed, err := svc.RefreshValuations(ctx, ring.ID)
	require.NoError(t, err)

	require.Len(t, refreshed.AssetClasses, 3)
	assert.True(t, refreshed.AssetClasses[0].CurrentValue.Equal(decimal.NewFromInt(80000)))
	assert.True(t, refreshed.AssetClasses[1].CurrentValue.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, "Crypto", refreshed.AssetClasses[2].Name)
	assert.Zero(t, refreshed.AssetClasses[2].TargetPercentage)
	assert.True(t, refreshed.PortfolioValue.Equal(decimal.NewFromInt(105000)))
	assert.True(t, refreshed.RebalancingNeeded)

	require.Len(t, refreshed.DriftHistory, 1)
	sample := refreshed.DriftHistory[0]
	assert.InDelta(t, 50-20000.0/105000*100, sample.MaxAbsVariance, 1e-9)
	assert.True(t, sample.PortfolioValue.Equal(refreshed.PortfolioValue))
	assert.Equal(t, refreshed.LastCalculatedAt, sample.Timestamp)
}

func TestRefreshValuations_HistoryIsBounded(t *testing.T) {
	provider := new(MockPortfolioDataProvider)
	repoSvc := newTestService(t, provider, nil)
	repoSvc.cfg.HistoryLimit = 2
	ctx := context.Background()

	req := balancedRequest(uuid.New(), 1000, 1000)
	req.PortfolioID = "pf-1"
	ring, err := repoSvc.CreateRing(ctx, req)
	require.NoError(t, err)

	provider.On("GetPortfolio", ctx, ring.UserID, "pf-1").Return(&entities.PortfolioSnapshot{
		Holdings: []entities.PortfolioHolding{holding("VAS", entities.AssetClassEquities, "AU", true, 1000)},
	}, nil)

	for i := 0; i < 4; i++ {
		ring, err = repoSvc.RefreshValuations(ctx, ring.ID)
		require.NoError(t, err)
	}
	assert.Len(t, ring.DriftHistory, 2)
	// bonds are no longer reported
	assert.True(t, ring.AssetClasses[1].CurrentValue.IsZero())
}

func TestRefreshValuations_Errors(t *testing.T) {
	provider := new(MockPortfolioDataProvider)
	svc := newTestService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.RefreshValuations(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))

	unlinked, err := svc.CreateRing(ctx, balancedRequest(uuid.New(), 1, 1))
	require.NoError(t, err)
	_, err = svc.RefreshValuations(ctx, unlinked.ID)
	assert.True(t, apperrors.IsValidation(err))

	req := balancedRequest(uuid.New(), 1, 1)
	req.PortfolioID = "pf-9"
	linked, err := svc.CreateRing(ctx, req)
	require.NoError(t, err)
	provider.On("GetPortfolio", ctx, linked.UserID, "pf-9").Return(nil, errors.New("down"))

	_, err = svc.RefreshValuations(ctx, linked.ID)
	assert.True(t, apperrors.IsExternal(err))

	stored, err := svc.GetRing(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, linked, stored)
	provider.AssertNumberOfCalls(t, "GetPortfolio", 1)
	provider.AssertCalled(t, "GetPortfolio", mock.Anything, linked.UserID, "pf-9")
}

func TestSeedTargets_SumsToHundred(t *testing.T) {
	inputs := []entities.AssetClassInput{
		{Category: entities.AssetClassEquities, CurrentValue: decimal.NewFromInt(100)},
		{Category: entities.AssetClassBonds, CurrentValue: decimal.NewFromInt(100)},
		{Category: entities.AssetClassCash, CurrentValue: decimal.NewFromInt(100)},
	}
	seedTargets(inputs)

	sum := 0.0
	for _, in := range inputs {
		sum += in.TargetPercentage
	}
	assert.InDelta(t, 100, sum, 1e-9)
	assert.InDelta(t, 33.34, inputs[0].TargetPercentage, 1e-9)
	assert.InDelta(t, 33.33, inputs[2].TargetPercentage, 1e-9)
}

func TestSeedTargets_EmptyPortfolio(t *testing.T) {
	inputs := []entities.AssetClassInput{{Category: entities.AssetClassCash}}
	seedTargets(inputs)
	assert.Zero(t, inputs[0].TargetPercentage)
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "ETFs", categoryLabel(entities.AssetClassETFs))
	assert.Equal(t, "Managed Funds", categoryLabel(entities.AssetClassManagedFunds))
	assert.Equal(t, "Bonds", categoryLabel(entities.AssetClassBonds))
}

func TestApplyValuations_SplitsCategoryProportionally(t *testing.T) {
	ring := testRing(
		assetClass(entities.AssetClassEquities, "AU shares", 30000, 0),
		assetClass(entities.AssetClassEquities, "US shares", 10000, 0),
	)
	applyValuations(ring, []entities.PortfolioHolding{
		holding("VAS", entities.AssetClassEquities, "AU", true, 30000),
		holding("VTS", entities.AssetClassEquities, "US", false, 30000),
	})

	assert.True(t, ring.AssetClasses[0].CurrentValue.Equal(decimal.NewFromInt(45000)))
	assert.True(t, ring.AssetClasses[1].CurrentValue.Equal(decimal.NewFromInt(15000)))
}

func TestHoldingCategory_UnknownFallsBackToOther(t *testing.T) {
	inputs := classInputsFromHoldings([]entities.PortfolioHolding{
		holding("ART", "collectibles", "", false, 500),
	}, false)
	require.Len(t, inputs, 1)
	assert.Equal(t, entities.AssetClassOther, inputs[0].Category)
	assert.Equal(t, "Other", inputs[0].Name)
}
