package allocation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRebalancing_Alternatives(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 52000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 48000, 50),
	)

	analysis := NewEngine(DefaultEngineConfig()).AnalyzeRebalancing(ring, entities.RebalanceRequest{RingID: ring.ID})
	require.True(t, analysis.Success, analysis.Errors)

	require.Len(t, analysis.Trades, 2)
	assert.Equal(t, entities.TradeActionSell, analysis.Trades[0].Action)
	assert.True(t, analysis.Trades[0].Amount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, analysis.TotalCost.Equal(decimal.NewFromInt(4)), analysis.TotalCost.String())

	require.Len(t, analysis.ProposedState, 2)
	assert.True(t, analysis.ProposedState[0].Value.Equal(decimal.NewFromInt(50000)))

	require.Len(t, analysis.Alternatives, 3)
	assert.Equal(t, entities.StrategyFullRebalance, analysis.Alternatives[0].Strategy)
	assert.Equal(t, 2, analysis.Alternatives[0].TradeCount)

	threshold := analysis.Alternatives[1]
	assert.Equal(t, entities.StrategyThresholdRebalance, threshold.Strategy)
	assert.Zero(t, threshold.TradeCount)

	cash := analysis.Alternatives[2]
	assert.Equal(t, entities.StrategyCashFlowRebalance, cash.Strategy)
	require.Len(t, cash.Trades, 1)
	assert.Equal(t, entities.TradeActionBuy, cash.Trades[0].Action)
	assert.True(t, cash.CashRequired.Equal(decimal.NewFromInt(4000)), cash.CashRequired.String())
}

func TestAnalyzeRebalancing_AdHocTargets(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 50000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 50000, 50),
	)
	engine := NewEngine(DefaultEngineConfig())

	analysis := engine.AnalyzeRebalancing(ring, entities.RebalanceRequest{
		RingID: ring.ID,
		Targets: map[entities.AssetClassCategory]float64{
			entities.AssetClassEquities: 70,
			entities.AssetClassBonds:    30,
		},
	})
	require.True(t, analysis.Success, analysis.Errors)
	require.Len(t, analysis.Trades, 2)
	assert.Equal(t, entities.TradeActionBuy, analysis.Trades[0].Action)
	assert.True(t, analysis.Trades[0].Amount.Equal(decimal.NewFromInt(20000)))

	bps := 0.0
	minTrade := decimal.NewFromInt(25000)
	analysis = engine.AnalyzeRebalancing(ring, entities.RebalanceRequest{
		RingID:             ring.ID,
		Targets:            map[entities.AssetClassCategory]float64{entities.AssetClassEquities: 70, entities.AssetClassBonds: 30},
		TransactionCostBps: &bps,
		MinTradeAmount:     &minTrade,
	})
	require.True(t, analysis.Success)
	assert.Empty(t, analysis.Trades)
	assert.True(t, analysis.TotalCost.IsZero())
}

func TestAnalyzeRebalancing_Failures(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 50000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 50000, 50),
	)
	missingTA := uuid.New()

	tests := []struct {
		name string
		ring *entities.AllocationRing
		req  entities.RebalanceRequest
		want string
	}{
		{
			name: "unknown ring",
			ring: nil,
			req:  entities.RebalanceRequest{RingID: uuid.New()},
			want: ReasonRingNotFound,
		},
		{
			name: "no asset classes",
			ring: recalculated(),
			want: ReasonNoAssetClasses,
		},
		{
			name: "no value",
			ring: recalculated(assetClass(entities.AssetClassCash, "Cash", 0, 100)),
			want: ReasonNoPortfolioValue,
		},
		{
			name: "unknown target allocation",
			ring: ring,
			req:  entities.RebalanceRequest{TargetAllocationID: &missingTA},
			want: ReasonTargetAllocationNotFound,
		},
		{
			name: "targets do not sum to 100",
			ring: ring,
			req: entities.RebalanceRequest{Targets: map[entities.AssetClassCategory]float64{
				entities.AssetClassEquities: 60,
				entities.AssetClassBonds:    30,
			}},
			want: "Targets sum to 90.00%, expected 100%",
		},
		{
			name: "target for absent category",
			ring: ring,
			req: entities.RebalanceRequest{Targets: map[entities.AssetClassCategory]float64{
				entities.AssetClassEquities: 50,
				entities.AssetClassBonds:    40,
				entities.AssetClassCrypto:   10,
			}},
			want: "Ring has no crypto asset class to receive a 10.00% target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := engine.AnalyzeRebalancing(tt.ring, tt.req)
			assert.False(t, analysis.Success)
			assert.Contains(t, analysis.Errors, tt.want)
			assert.Empty(t, analysis.Trades)
		})
	}
}

func TestAnalyzeRebalancing_CriticalConstraint(t *testing.T) {
	ring := testRing(
		assetClass(entities.AssetClassCrypto, "Crypto", 10000, 10),
		assetClass(entities.AssetClassBonds, "Bonds", 90000, 90),
	)
	ring.TargetAllocations = []entities.TargetAllocation{{
		ID:       uuid.New(),
		Name:     "Capped crypto",
		IsActive: true,
		Targets: []entities.AssetClassTarget{
			{Category: entities.AssetClassCrypto, TargetPercentage: 30},
			{Category: entities.AssetClassBonds, TargetPercentage: 70},
		},
		Constraints: []entities.AllocationConstraint{{
			ID:            uuid.New(),
			Category:      entities.AssetClassCrypto,
			MaxPercentage: 20,
			Severity:      entities.SeverityCritical,
		}},
	}}
	engine := NewEngine(DefaultEngineConfig())
	engine.Recalculate(ring)

	analysis := engine.AnalyzeRebalancing(ring, entities.RebalanceRequest{RingID: ring.ID})
	assert.False(t, analysis.Success)
	require.Len(t, analysis.Errors, 1)
	assert.Contains(t, analysis.Errors[0], "breaks critical constraint")
}

func TestAnalyzePerformance(t *testing.T) {
	shares := assetClass(entities.AssetClassEquities, "Shares", 60000, 50)
	shares.Performance = entities.PerformanceMetrics{OneYearReturn: 10, BenchmarkReturn: 8, AfterTaxReturn: 7, Volatility: 15}
	bonds := assetClass(entities.AssetClassBonds, "Bonds", 40000, 50)
	bonds.Performance = entities.PerformanceMetrics{OneYearReturn: 4, BenchmarkReturn: 4, AfterTaxReturn: 3, Volatility: 5}

	ring := recalculated(shares, bonds)
	perf := NewEngine(DefaultEngineConfig()).AnalyzePerformance(ring)

	assert.Equal(t, ring.ID, perf.RingID)
	assert.InDelta(t, 0.6*10+0.4*4, perf.OverallReturn, 1e-9)
	assert.InDelta(t, 0.5*8+0.5*4, perf.Benchmark.BenchmarkReturn, 1e-9)
	assert.True(t, perf.Benchmark.Outperformed)
	assert.InDelta(t, 0.6*7+0.4*3, perf.TaxAdjusted.AfterTaxReturn, 1e-9)
	assert.InDelta(t, perf.TaxAdjusted.AfterTaxReturn-perf.OverallReturn, perf.TaxAdjusted.TaxDrag, 1e-9)

	require.Len(t, perf.AssetClasses, 2)
	assert.InDelta(t, 6, perf.AssetClasses[0].Contribution, 1e-9)
	assert.InDelta(t, 2, perf.AssetClasses[0].ExcessReturn, 1e-9)
	require.Len(t, perf.Attribution, 2)
}

func TestAnalyzePerformance_EmptyRing(t *testing.T) {
	perf := NewEngine(DefaultEngineConfig()).AnalyzePerformance(recalculated())
	assert.Empty(t, perf.AssetClasses)
	assert.NotNil(t, perf.Attribution)
	assert.Zero(t, perf.OverallReturn)
}

func TestService_AnalyzeRebalancing_UnknownRing(t *testing.T) {
	svc := newTestService(t, nil, nil)

	analysis := svc.AnalyzeRebalancing(context.Background(), entities.RebalanceRequest{RingID: uuid.New()})
	assert.False(t, analysis.Success)
	assert.Equal(t, []string{ReasonRingNotFound}, analysis.Errors)
}

func TestService_AnalyzeRebalancing_UsesActiveTargets(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	ring, err := svc.CreateRing(ctx, entities.CreateRingRequest{
		UserID: uuid.New(),
		Name:   "Growth",
		AssetClasses: []entities.AssetClassInput{
			{Category: entities.AssetClassEquities, Name: "Shares", CurrentValue: decimal.NewFromInt(50000), TargetPercentage: 50},
			{Category: entities.AssetClassBonds, Name: "Bonds", CurrentValue: decimal.NewFromInt(50000), TargetPercentage: 50},
		},
		TargetAllocations: []entities.TargetAllocation{{
			Name:     "Aggressive",
			IsActive: true,
			Targets: []entities.AssetClassTarget{
				{Category: entities.AssetClassEquities, TargetPercentage: 80},
				{Category: entities.AssetClassBonds, TargetPercentage: 20},
			},
		}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 80, ring.AssetClasses[0].TargetPercentage, 1e-9)

	analysis := svc.AnalyzeRebalancing(ctx, entities.RebalanceRequest{RingID: ring.ID})
	require.True(t, analysis.Success, analysis.Errors)
	require.Len(t, analysis.Trades, 2)
	assert.True(t, analysis.Trades[0].Amount.Equal(decimal.NewFromInt(30000)))

	perf, err := svc.GetPerformanceAnalysis(ctx, ring.ID)
	require.NoError(t, err)
	assert.Equal(t, ring.ID, perf.RingID)
}
