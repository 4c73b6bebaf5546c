package allocation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetClass(category entities.AssetClassCategory, name string, value int64, target float64) entities.AssetClassAllocation {
	return entities.AssetClassAllocation{
		ID:               uuid.New(),
		Category:         category,
		Name:             name,
		CurrentValue:     decimal.NewFromInt(value),
		TargetPercentage: target,
	}
}

func testRing(classes ...entities.AssetClassAllocation) *entities.AllocationRing {
	return &entities.AllocationRing{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Name:          "Retirement",
		Currency:      entities.CurrencyAUD,
		AssetClasses:  classes,
		Configuration: entities.DefaultRingConfiguration(),
	}
}

func recalculated(classes ...entities.AssetClassAllocation) *entities.AllocationRing {
	ring := testRing(classes...)
	NewEngine(DefaultEngineConfig()).Recalculate(ring)
	return ring
}

func TestRecalculate_DerivedFields(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 60000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 40000, 50),
	)

	assert.True(t, ring.PortfolioValue.Equal(decimal.NewFromInt(100000)))
	assert.InDelta(t, 60, ring.AssetClasses[0].CurrentPercentage, 1e-9)
	assert.InDelta(t, 40, ring.AssetClasses[1].CurrentPercentage, 1e-9)
	assert.InDelta(t, 10, ring.AssetClasses[0].Variance, 1e-9)
	assert.InDelta(t, -10, ring.AssetClasses[1].Variance, 1e-9)

	for _, ac := range ring.AssetClasses {
		assert.Equal(t, ring.ID, ac.RingID)
	}

	assert.True(t, ring.RebalancingNeeded)
	// exactly 10 points is not beyond the drift-correction threshold
	for _, sg := range ring.RebalancingSuggestions {
		assert.NotEqual(t, entities.SuggestionDriftCorrection, sg.Type)
	}
}

func TestRecalculate_ThresholdBoundary(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 55000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 45000, 50),
	)
	assert.InDelta(t, 5, ring.AssetClasses[0].Variance, 1e-9)
	assert.False(t, ring.RebalancingNeeded)

	ring = recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 55001, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 44999, 50),
	)
	assert.True(t, ring.RebalancingNeeded)
}

func TestRecalculate_DriftCorrectionSuggestion(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 65000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 35000, 50),
	)

	require.Len(t, ring.RebalancingSuggestions, 1)
	sg := ring.RebalancingSuggestions[0]
	assert.Equal(t, entities.SuggestionDriftCorrection, sg.Type)
	assert.Equal(t, entities.SuggestionPriorityHigh, sg.Priority)
	assert.Equal(t, entities.SuggestionStatusPending, sg.Status)
	assert.Equal(t, ring.ID, sg.RingID)

	require.Len(t, sg.ProposedChanges, 2)
	sell, buy := sg.ProposedChanges[0], sg.ProposedChanges[1]
	assert.Equal(t, entities.TradeActionSell, sell.Action)
	assert.True(t, sell.Amount.Equal(decimal.NewFromInt(15000)), sell.Amount.String())
	assert.True(t, sell.EstimatedCost.Equal(decimal.NewFromInt(15)), sell.EstimatedCost.String())
	assert.Equal(t, entities.TradeActionBuy, buy.Action)
	assert.True(t, buy.Amount.Equal(decimal.NewFromInt(15000)))
	assert.InDelta(t, 50, buy.ToPercentage, 1e-9)

	assert.Contains(t, sg.ImplementationSteps[1], "Sell $15,000.00 of Shares")
	assert.Contains(t, sg.ImplementationSteps[2], "Buy $15,000.00 of Bonds")
}

func TestRecalculate_Idempotent(t *testing.T) {
	classes := []entities.AssetClassAllocation{
		assetClass(entities.AssetClassEquities, "Shares", 70000, 40),
		assetClass(entities.AssetClassBonds, "Bonds", 20000, 40),
		assetClass(entities.AssetClassCash, "Cash", 10000, 20),
	}
	classes[0].TaxCharacteristics = entities.TaxCharacteristics{TaxEfficiencyScore: 30, TurnoverRate: 60}

	ring := testRing(classes...)
	engine := NewEngine(DefaultEngineConfig())
	engine.Recalculate(ring)
	first := ring.Clone()
	engine.Recalculate(ring)

	assert.Equal(t, first, ring)
}

func TestRecalculate_SuggestionStatusCarriesOver(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 65000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 35000, 50),
	)
	require.Len(t, ring.RebalancingSuggestions, 1)
	id := ring.RebalancingSuggestions[0].ID

	ring.RebalancingSuggestions[0].Status = entities.SuggestionStatusAccepted
	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, 1)
	assert.Equal(t, id, ring.RebalancingSuggestions[0].ID)
	assert.Equal(t, entities.SuggestionStatusAccepted, ring.RebalancingSuggestions[0].Status)

	ring.RebalancingSuggestions[0].Status = entities.SuggestionStatusImplemented
	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, 1)
	assert.Equal(t, entities.SuggestionStatusImplemented, ring.RebalancingSuggestions[0].Status)
}

func TestRecalculate_ResolvedSuggestionsOutliveTheirCondition(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 65000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 35000, 50),
	)
	require.Len(t, ring.RebalancingSuggestions, 1)
	implemented := ring.RebalancingSuggestions[0].ID
	ring.RebalancingSuggestions[0].Status = entities.SuggestionStatusImplemented

	// back on target: nothing new is suggested, the implemented one stays
	ring.AssetClasses[0].CurrentValue = decimal.NewFromInt(50000)
	ring.AssetClasses[1].CurrentValue = decimal.NewFromInt(50000)
	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, 1)
	assert.Equal(t, implemented, ring.RebalancingSuggestions[0].ID)
	assert.Equal(t, entities.SuggestionStatusImplemented, ring.RebalancingSuggestions[0].Status)

	// an open suggestion whose condition is gone is dropped
	ring = recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 65000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 35000, 50),
	)
	ring.RebalancingSuggestions[0].Status = entities.SuggestionStatusAccepted
	ring.AssetClasses[0].CurrentValue = decimal.NewFromInt(50000)
	ring.AssetClasses[1].CurrentValue = decimal.NewFromInt(50000)
	engine.Recalculate(ring)
	assert.Empty(t, ring.RebalancingSuggestions)
}

func TestRecalculate_NewDriftReopensResolvedSuggestion(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 65000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 35000, 50),
	)
	require.Len(t, ring.RebalancingSuggestions, 1)
	id := ring.RebalancingSuggestions[0].ID
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	ring.RebalancingSuggestions[0].Status = entities.SuggestionStatusImplemented
	ring.RebalancingSuggestions[0].ResolvedAt = &at

	ring.AssetClasses[0].CurrentValue = decimal.NewFromInt(50000)
	ring.AssetClasses[1].CurrentValue = decimal.NewFromInt(50000)
	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, 1)
	assert.Equal(t, entities.SuggestionStatusImplemented, ring.RebalancingSuggestions[0].Status)

	// the same classes drift again by a different amount
	ring.AssetClasses[0].CurrentValue = decimal.NewFromInt(70000)
	ring.AssetClasses[1].CurrentValue = decimal.NewFromInt(30000)
	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, 1)
	sg := ring.RebalancingSuggestions[0]
	assert.Equal(t, id, sg.ID)
	assert.Equal(t, entities.SuggestionStatusPending, sg.Status)
	assert.Nil(t, sg.ResolvedAt)
}

func TestRecalculate_ResolvedSuggestionsAreBounded(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 50000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 50000, 50),
	)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxResolvedSuggestions+5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		ring.RebalancingSuggestions = append(ring.RebalancingSuggestions, entities.RebalancingSuggestion{
			ID:         uuid.New(),
			RingID:     ring.ID,
			Type:       entities.SuggestionDriftCorrection,
			Status:     entities.SuggestionStatusRejected,
			ResolvedAt: &at,
		})
	}

	engine.Recalculate(ring)
	require.Len(t, ring.RebalancingSuggestions, MaxResolvedSuggestions)
	newest := base.Add(time.Duration(MaxResolvedSuggestions+4) * time.Hour)
	assert.True(t, ring.RebalancingSuggestions[0].ResolvedAt.Equal(newest))

	first := ring.Clone()
	engine.Recalculate(ring)
	assert.Equal(t, first, ring)
}

func TestRecalculate_EmptyRing(t *testing.T) {
	ring := recalculated()

	assert.True(t, ring.PortfolioValue.IsZero())
	assert.False(t, ring.RebalancingNeeded)
	assert.Empty(t, ring.RebalancingSuggestions)
	assert.Equal(t, entities.ComplianceCompliant, ring.ComplianceStatus.Overall)
}

func TestRecalculate_ZeroValueRing(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 0, 60),
		assetClass(entities.AssetClassBonds, "Bonds", 0, 40),
	)

	for _, ac := range ring.AssetClasses {
		assert.Zero(t, ac.CurrentPercentage)
		assert.Zero(t, ac.Segment.Angle)
	}
	// variance is -target, which drifts past the threshold
	assert.InDelta(t, -60, ring.AssetClasses[0].Variance, 1e-9)
	assert.True(t, ring.RebalancingNeeded)
}

func TestLayoutSegments(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 1, 0),
		assetClass(entities.AssetClassBonds, "Bonds", 1, 0),
		assetClass(entities.AssetClassCash, "Cash", 1, 0),
		assetClass(entities.AssetClassCrypto, "Crypto", 0, 0),
	)

	segs := make([]entities.RingSegment, 0, len(ring.AssetClasses))
	for _, ac := range ring.AssetClasses {
		segs = append(segs, ac.Segment)
	}

	assert.Zero(t, segs[0].StartAngle)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].EndAngle, segs[i].StartAngle)
	}
	assert.Equal(t, 360.0, segs[2].EndAngle)
	assert.Equal(t, 360.0, segs[3].StartAngle)
	assert.Zero(t, segs[3].Angle)

	assert.Equal(t, ring.Configuration.Radius, segs[0].OuterRadius)
	assert.Equal(t, ring.Configuration.InnerRadius, segs[0].InnerRadius)
	assert.Equal(t, entities.DefaultColorScheme()[entities.AssetClassBonds], segs[1].Color)
}

func TestLayoutSegments_CustomColor(t *testing.T) {
	ring := testRing(assetClass(entities.AssetClassEquities, "Shares", 100, 100))
	ring.Configuration.ColorScheme = map[entities.AssetClassCategory]string{entities.AssetClassEquities: "#000000"}
	NewEngine(DefaultEngineConfig()).Recalculate(ring)

	assert.Equal(t, "#000000", ring.AssetClasses[0].Segment.Color)
	assert.Equal(t, 360.0, ring.AssetClasses[0].Segment.Angle)
}

func TestTaxInsights_WeightedEfficiency(t *testing.T) {
	shares := assetClass(entities.AssetClassEquities, "Shares", 60000, 60)
	shares.TaxCharacteristics.TaxEfficiencyScore = 85
	bonds := assetClass(entities.AssetClassBonds, "Bonds", 40000, 40)
	bonds.TaxCharacteristics.TaxEfficiencyScore = 40

	ring := recalculated(shares, bonds)
	assert.InDelta(t, 67, ring.TaxInsights.OverallTaxEfficiency, 1e-9)
	require.NotNil(t, ring.TaxInsights.Franking)
	assert.Nil(t, ring.TaxInsights.FIF)
}

func TestTaxOptimizationSuggestion(t *testing.T) {
	active := assetClass(entities.AssetClassManagedFunds, "Active fund", 40000, 40)
	active.TaxCharacteristics = entities.TaxCharacteristics{TaxEfficiencyScore: 40, TurnoverRate: 45}
	index := assetClass(entities.AssetClassETFs, "Index ETF", 60000, 60)
	index.TaxCharacteristics = entities.TaxCharacteristics{TaxEfficiencyScore: 90, TurnoverRate: 5}

	ring := recalculated(active, index)

	require.Len(t, ring.RebalancingSuggestions, 1)
	sg := ring.RebalancingSuggestions[0]
	assert.Equal(t, entities.SuggestionTaxOptimization, sg.Type)
	assert.Equal(t, entities.SuggestionPriorityHigh, sg.Priority)

	require.Len(t, sg.ProposedChanges, 1)
	ch := sg.ProposedChanges[0]
	assert.Equal(t, active.ID, ch.AssetClassID)
	assert.Equal(t, ch.FromPercentage, ch.ToPercentage)
	assert.True(t, ch.Amount.Equal(decimal.NewFromInt(40000)))
	assert.True(t, ch.EstimatedCost.Equal(decimal.NewFromInt(80)), ch.EstimatedCost.String())
	assert.InDelta(t, (ReplacementEfficiencyScore-40)*0.4, sg.ExpectedImpact.TaxEfficiencyDelta, 1e-9)
}

func TestTaxOptimizationSuggestion_MediumPriorityBelowWeight(t *testing.T) {
	active := assetClass(entities.AssetClassManagedFunds, "Active fund", 10000, 10)
	active.TaxCharacteristics = entities.TaxCharacteristics{TaxEfficiencyScore: 20, TurnoverRate: 80}
	index := assetClass(entities.AssetClassETFs, "Index ETF", 90000, 90)

	ring := recalculated(active, index)
	require.Len(t, ring.RebalancingSuggestions, 1)
	assert.Equal(t, entities.SuggestionPriorityMedium, ring.RebalancingSuggestions[0].Priority)
}

func TestFIFInsight(t *testing.T) {
	global := assetClass(entities.AssetClassETFs, "Global ETF", 80000, 80)
	global.GeographicBreakdown = []entities.GeographicAllocation{
		{Region: "US", Value: decimal.NewFromInt(60000), FIFApplicable: true},
		{Region: "NZ", Value: decimal.NewFromInt(20000), IsDomestic: true},
	}
	local := assetClass(entities.AssetClassEquities, "NZX shares", 20000, 20)

	ring := testRing(global, local)
	ring.Currency = entities.CurrencyNZD
	NewEngine(DefaultEngineConfig()).Recalculate(ring)

	require.NotNil(t, ring.TaxInsights.FIF)
	assert.Nil(t, ring.TaxInsights.Franking)
	assert.True(t, ring.TaxInsights.FIF.OffshoreValue.Equal(decimal.NewFromInt(60000)))
	assert.True(t, ring.TaxInsights.FIF.ExceedsThreshold)
}

func TestJurisdictionFor(t *testing.T) {
	assert.Equal(t, JurisdictionNZ, JurisdictionFor(entities.CurrencyNZD))
	assert.Equal(t, JurisdictionAU, JurisdictionFor(entities.CurrencyAUD))
	assert.Equal(t, JurisdictionAU, JurisdictionFor(entities.CurrencyUSD))
}

func TestCompliance_ConstraintBreaches(t *testing.T) {
	tests := []struct {
		name     string
		severity entities.Severity
		want     entities.ComplianceLevel
	}{
		{"critical breach", entities.SeverityCritical, entities.ComplianceNonCompliant},
		{"high breach", entities.SeverityHigh, entities.ComplianceMajorIssues},
		{"low breach", entities.SeverityLow, entities.ComplianceMinorIssues},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring := testRing(
				assetClass(entities.AssetClassCrypto, "Crypto", 30000, 30),
				assetClass(entities.AssetClassBonds, "Bonds", 70000, 70),
			)
			ring.TargetAllocations = []entities.TargetAllocation{{
				ID:       uuid.New(),
				Name:     "Capped",
				IsActive: true,
				Constraints: []entities.AllocationConstraint{{
					ID:            uuid.New(),
					Category:      entities.AssetClassCrypto,
					MinPercentage: 0,
					MaxPercentage: 10,
					Severity:      tt.severity,
				}},
			}}
			NewEngine(DefaultEngineConfig()).Recalculate(ring)

			assert.Equal(t, tt.want, ring.ComplianceStatus.Overall)
			require.Len(t, ring.ComplianceStatus.Constraints, 1)
			assert.False(t, ring.ComplianceStatus.Constraints[0].Compliant)
			assert.InDelta(t, 30, ring.ComplianceStatus.Constraints[0].CurrentPercentage, 1e-9)
		})
	}
}

func TestCompliance_TargetSumWarning(t *testing.T) {
	ring := recalculated(
		assetClass(entities.AssetClassEquities, "Shares", 50000, 50),
		assetClass(entities.AssetClassBonds, "Bonds", 50000, 30),
	)
	assert.Equal(t, entities.ComplianceMinorIssues, ring.ComplianceStatus.Overall)
	assert.NotEmpty(t, ring.ComplianceStatus.Warnings)
}

func TestCategoryTargets(t *testing.T) {
	classes := []entities.AssetClassAllocation{
		assetClass(entities.AssetClassEquities, "AU shares", 30000, 0),
		assetClass(entities.AssetClassEquities, "US shares", 10000, 0),
		assetClass(entities.AssetClassBonds, "Bonds", 0, 0),
		assetClass(entities.AssetClassBonds, "Gov bonds", 0, 0),
		assetClass(entities.AssetClassCash, "Cash", 5000, 0),
	}
	got := CategoryTargets(classes, map[entities.AssetClassCategory]float64{
		entities.AssetClassEquities: 60,
		entities.AssetClassBonds:    40,
	})

	assert.InDeltaSlice(t, []float64{45, 15, 20, 20, 0}, got, 1e-9)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12,500.00", formatMoney(decimal.NewFromInt(12500), entities.CurrencyAUD))
	assert.Equal(t, "$0.50", formatMoney(decimal.RequireFromString("0.5"), entities.CurrencyNZD))
	assert.Equal(t, "$1.00", formatMoney(decimal.NewFromInt(1), ""))
}
