package allocation

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// Policy constants. Variances are percentage points.
const (
	RebalanceThreshold       = 5.0
	DriftCorrectionThreshold = 10.0
	TargetSumTolerance       = 0.01
)

// EngineConfig tunes the cost and tax estimates attached to suggestions.
// None of it affects percentages, variances, geometry or the rebalancing flag.
type EngineConfig struct {
	TransactionCostBps float64
	MarginalTaxRate    float64
	MinTradeAmount     decimal.Decimal
	// RiskFreeRate is the annual percentage used for Sharpe ratios.
	RiskFreeRate float64
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TransactionCostBps: 10,
		MarginalTaxRate:    0.325,
		MinTradeAmount:     decimal.NewFromInt(100),
		RiskFreeRate:       4.0,
	}
}

// Engine runs the recalculation pipeline. It holds no ring state and is safe
// for concurrent use.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TransactionCostBps < 0 {
		cfg.TransactionCostBps = 0
	}
	if cfg.MarginalTaxRate <= 0 || cfg.MarginalTaxRate > 1 {
		cfg.MarginalTaxRate = DefaultEngineConfig().MarginalTaxRate
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() EngineConfig { return e.cfg }

// Recalculate rewrites every derived field of ring from its raw data. It is
// deterministic: running it twice without a mutation in between yields
// identical derived fields. Timestamps are left to the caller.
func (e *Engine) Recalculate(ring *entities.AllocationRing) {
	start := time.Now()
	defer func() {
		metrics.RingRecalculationDuration.Observe(time.Since(start).Seconds())
	}()

	ring.PortfolioValue = portfolioValue(ring.AssetClasses)

	for i := range ring.AssetClasses {
		ac := &ring.AssetClasses[i]
		ac.RingID = ring.ID
		ac.CurrentPercentage = percentageOf(ac.CurrentValue, ring.PortfolioValue)
		ac.Variance = ac.CurrentPercentage - ac.TargetPercentage
	}

	layoutSegments(ring.AssetClasses, ring.Configuration)

	ring.RebalancingNeeded = needsRebalancing(ring.AssetClasses)
	ring.RebalancingSuggestions = e.generateSuggestions(ring)
	ring.TaxInsights = e.calculateTaxInsights(ring)

	lastChecked := ring.ComplianceStatus.LastChecked
	ring.ComplianceStatus = e.evaluateCompliance(ring)
	ring.ComplianceStatus.LastChecked = lastChecked
}

func portfolioValue(classes []entities.AssetClassAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, ac := range classes {
		total = total.Add(ac.CurrentValue)
	}
	return total
}

func percentageOf(value, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return value.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func needsRebalancing(classes []entities.AssetClassAllocation) bool {
	for _, ac := range classes {
		if math.Abs(ac.Variance) > RebalanceThreshold {
			return true
		}
	}
	return false
}

// MaxAbsVariance returns the largest absolute variance and the sum of absolute variances.
func MaxAbsVariance(classes []entities.AssetClassAllocation) (maxAbs, total float64) {
	for _, ac := range classes {
		v := math.Abs(ac.Variance)
		total += v
		if v > maxAbs {
			maxAbs = v
		}
	}
	return maxAbs, total
}

// tradeAmount is the currency amount that moves weight by deltaPct percentage points.
func tradeAmount(deltaPct float64, total decimal.Decimal) decimal.Decimal {
	return total.Mul(decimal.NewFromFloat(math.Abs(deltaPct))).Div(decimal.NewFromInt(100)).Round(2)
}

func (e *Engine) transactionCost(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(e.cfg.TransactionCostBps)).Div(decimal.NewFromInt(10000)).Round(2)
}
