package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// Analysis failure messages.
const (
	ReasonRingNotFound             = "Ring not found"
	ReasonTargetAllocationNotFound = "Target allocation not found"
	ReasonNoAssetClasses           = "Ring has no asset classes"
	ReasonNoPortfolioValue         = "Portfolio has no value to rebalance"
)

// CategoryTargets spreads per-category targets over the asset classes of each
// category in proportion to their current values, or evenly when the category
// holds no value. Categories missing from targets get 0.
func CategoryTargets(classes []entities.AssetClassAllocation, targets map[entities.AssetClassCategory]float64) []float64 {
	catValue := make(map[entities.AssetClassCategory]decimal.Decimal)
	catCount := make(map[entities.AssetClassCategory]int)
	for _, ac := range classes {
		catValue[ac.Category] = catValue[ac.Category].Add(ac.CurrentValue)
		catCount[ac.Category]++
	}

	out := make([]float64, len(classes))
	for i, ac := range classes {
		target := targets[ac.Category]
		if target == 0 {
			continue
		}
		if total := catValue[ac.Category]; total.IsPositive() {
			out[i] = ac.CurrentValue.Div(total).InexactFloat64() * target
		} else {
			out[i] = target / float64(catCount[ac.Category])
		}
	}
	return out
}

// TargetMap flattens a target allocation into a category map.
func TargetMap(ta *entities.TargetAllocation) map[entities.AssetClassCategory]float64 {
	out := make(map[entities.AssetClassCategory]float64, len(ta.Targets))
	for _, t := range ta.Targets {
		out[t.Category] += t.TargetPercentage
	}
	return out
}

// AnalyzeRebalancing plans a move from the ring's current weights to the
// requested targets. It never returns an error: infeasible requests produce a
// result with Success=false and the reasons.
func (e *Engine) AnalyzeRebalancing(ring *entities.AllocationRing, req entities.RebalanceRequest) *entities.RebalanceAnalysis {
	if ring == nil {
		return entities.FailedAnalysis(req.RingID, ReasonRingNotFound)
	}
	eng := e.withOverrides(req)
	classes := ring.AssetClasses

	if len(classes) == 0 {
		return entities.FailedAnalysis(ring.ID, ReasonNoAssetClasses)
	}
	if !ring.PortfolioValue.IsPositive() {
		return entities.FailedAnalysis(ring.ID, ReasonNoPortfolioValue)
	}

	targets, constraints, reasons := resolveTargets(ring, req)
	if len(reasons) > 0 {
		return entities.FailedAnalysis(ring.ID, reasons...)
	}
	if reasons := checkConstraints(classes, targets, constraints); len(reasons) > 0 {
		return entities.FailedAnalysis(ring.ID, reasons...)
	}

	jurisdiction := JurisdictionFor(ring.Currency)
	total := ring.PortfolioValue

	analysis := &entities.RebalanceAnalysis{
		Success:       true,
		RingID:        ring.ID,
		CurrentState:  make([]entities.AllocationState, 0, len(classes)),
		ProposedState: make([]entities.AllocationState, 0, len(classes)),
		GeneratedAt:   time.Now().UTC(),
	}
	for i, ac := range classes {
		analysis.CurrentState = append(analysis.CurrentState, entities.AllocationState{
			AssetClassID: ac.ID, Category: ac.Category, Name: ac.Name,
			Value: ac.CurrentValue, Percentage: ac.CurrentPercentage,
		})
		analysis.ProposedState = append(analysis.ProposedState, entities.AllocationState{
			AssetClassID: ac.ID, Category: ac.Category, Name: ac.Name,
			Value:      total.Mul(decimal.NewFromFloat(targets[i])).Div(decimal.NewFromInt(100)).Round(2),
			Percentage: targets[i],
		})
	}

	full := eng.plan(classes, targets, total, jurisdiction, 0)
	analysis.Trades = full
	analysis.TaxImplications = taxImplications(full, classes, jurisdiction)
	analysis.Impact = expectedImpact(classes, full)
	analysis.TotalCost = sumCost(full)
	analysis.EstimatedTax = sumTax(full)

	threshold := eng.plan(classes, targets, total, jurisdiction, RebalanceThreshold)
	analysis.Alternatives = []entities.RebalanceAlternative{
		alternative(entities.StrategyFullRebalance,
			"Trade every asset class back to its target weight", full, decimal.Zero),
		alternative(entities.StrategyThresholdRebalance,
			fmt.Sprintf("Only trade asset classes more than %.0f percentage points from target", RebalanceThreshold),
			threshold, decimal.Zero),
	}
	cashTrades, cash := eng.cashFlowPlan(classes, targets, total)
	analysis.Alternatives = append(analysis.Alternatives, alternative(entities.StrategyCashFlowRebalance,
		fmt.Sprintf("Add %s of new money to underweight asset classes without selling", formatMoney(cash, ring.Currency)),
		cashTrades, cash))

	return analysis
}

func (e *Engine) withOverrides(req entities.RebalanceRequest) *Engine {
	cfg := e.cfg
	if req.TransactionCostBps != nil && *req.TransactionCostBps >= 0 {
		cfg.TransactionCostBps = *req.TransactionCostBps
	}
	if req.MinTradeAmount != nil && !req.MinTradeAmount.IsNegative() {
		cfg.MinTradeAmount = *req.MinTradeAmount
	}
	return &Engine{cfg: cfg}
}

// resolveTargets picks ad-hoc targets, then the named target allocation, then
// the active one, then the asset classes' own targets.
func resolveTargets(ring *entities.AllocationRing, req entities.RebalanceRequest) ([]float64, []entities.AllocationConstraint, []string) {
	classes := ring.AssetClasses
	var byCategory map[entities.AssetClassCategory]float64
	var constraints []entities.AllocationConstraint

	active := ring.ActiveTargetAllocation()
	if active != nil {
		constraints = active.Constraints
	}

	switch {
	case len(req.Targets) > 0:
		byCategory = req.Targets
	case req.TargetAllocationID != nil:
		var named *entities.TargetAllocation
		for i := range ring.TargetAllocations {
			if ring.TargetAllocations[i].ID == *req.TargetAllocationID {
				named = &ring.TargetAllocations[i]
				break
			}
		}
		if named == nil {
			return nil, nil, []string{ReasonTargetAllocationNotFound}
		}
		byCategory = TargetMap(named)
		constraints = named.Constraints
	case active != nil:
		byCategory = TargetMap(active)
	}

	var reasons []string
	var targets []float64
	if byCategory == nil {
		targets = make([]float64, len(classes))
		for i, ac := range classes {
			targets[i] = ac.TargetPercentage
		}
	} else {
		present := categoryWeights(classes)
		cats := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			cats = append(cats, string(cat))
		}
		sort.Strings(cats)
		for _, c := range cats {
			cat := entities.AssetClassCategory(c)
			pct := byCategory[cat]
			if pct < 0 || pct > 100 {
				reasons = append(reasons, fmt.Sprintf("Target for %s must be between 0 and 100", cat))
				continue
			}
			if _, ok := present[cat]; !ok && pct > 0 {
				reasons = append(reasons, fmt.Sprintf("Ring has no %s asset class to receive a %s target", cat, formatPercent(pct)))
			}
		}
		targets = CategoryTargets(classes, byCategory)
	}

	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	if len(reasons) == 0 && math.Abs(sum-100) > TargetSumTolerance {
		reasons = append(reasons, fmt.Sprintf("Targets sum to %s, expected 100%%", formatPercent(sum)))
	}
	return targets, constraints, reasons
}

// checkConstraints rejects plans that cannot satisfy the constraint set or
// whose proposed weights break a critical constraint.
func checkConstraints(classes []entities.AssetClassAllocation, targets []float64, constraints []entities.AllocationConstraint) []string {
	var reasons []string

	minSum := 0.0
	for _, c := range constraints {
		minSum += c.MinPercentage
		if c.MinPercentage > c.MaxPercentage {
			reasons = append(reasons, fmt.Sprintf("Constraint on %s has minimum %s above maximum %s",
				c.Category, formatPercent(c.MinPercentage), formatPercent(c.MaxPercentage)))
		}
	}
	if minSum > 100+TargetSumTolerance {
		reasons = append(reasons, fmt.Sprintf("Constraint minimums sum to %s, more than 100%%", formatPercent(minSum)))
	}

	proposed := make(map[entities.AssetClassCategory]float64)
	for i, ac := range classes {
		proposed[ac.Category] += targets[i]
	}
	for _, c := range constraints {
		if c.Severity != entities.SeverityCritical {
			continue
		}
		w := proposed[c.Category]
		if w < c.MinPercentage-TargetSumTolerance || w > c.MaxPercentage+TargetSumTolerance {
			reasons = append(reasons, fmt.Sprintf("Proposed %s weight of %s breaks critical constraint [%s, %s]",
				c.Category, formatPercent(w), formatPercent(c.MinPercentage), formatPercent(c.MaxPercentage)))
		}
	}
	return reasons
}

// plan returns the trades moving each asset class whose distance from target
// exceeds minDrift percentage points. Trades under the minimum amount are dropped.
func (e *Engine) plan(classes []entities.AssetClassAllocation, targets []float64, total decimal.Decimal, jurisdiction string, minDrift float64) []entities.ProposedChange {
	trades := make([]entities.ProposedChange, 0)
	for i, ac := range classes {
		delta := targets[i] - ac.CurrentPercentage
		if delta == 0 || math.Abs(delta) <= minDrift {
			continue
		}
		ch := e.proposeChange(ac, targets[i], total, jurisdiction)
		if ch.Amount.LessThan(e.cfg.MinTradeAmount) || ch.Amount.IsZero() {
			continue
		}
		trades = append(trades, ch)
	}
	return trades
}

// cashFlowPlan finds the smallest contribution that restores every targeted
// asset class to its weight using buys only. Classes with a zero target are
// left as they are.
func (e *Engine) cashFlowPlan(classes []entities.AssetClassAllocation, targets []float64, total decimal.Decimal) ([]entities.ProposedChange, decimal.Decimal) {
	newTotal := total
	for i, ac := range classes {
		if targets[i] <= 0 {
			continue
		}
		needed := ac.CurrentValue.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromFloat(targets[i]))
		if needed.GreaterThan(newTotal) {
			newTotal = needed
		}
	}

	trades := make([]entities.ProposedChange, 0)
	for i, ac := range classes {
		if targets[i] <= 0 {
			continue
		}
		goal := newTotal.Mul(decimal.NewFromFloat(targets[i])).Div(decimal.NewFromInt(100))
		amount := goal.Sub(ac.CurrentValue).Round(2)
		if !amount.IsPositive() || amount.LessThan(e.cfg.MinTradeAmount) {
			continue
		}
		trades = append(trades, entities.ProposedChange{
			AssetClassID:   ac.ID,
			Category:       ac.Category,
			Name:           ac.Name,
			FromPercentage: ac.CurrentPercentage,
			ToPercentage:   targets[i],
			Action:         entities.TradeActionBuy,
			Amount:         amount,
			EstimatedCost:  e.transactionCost(amount),
			TaxImpact:      decimal.Zero,
		})
	}

	cash := decimal.Zero
	for _, t := range trades {
		cash = cash.Add(t.Amount)
	}
	return trades, cash
}

func alternative(strategy entities.RebalanceStrategy, description string, trades []entities.ProposedChange, cash decimal.Decimal) entities.RebalanceAlternative {
	return entities.RebalanceAlternative{
		Strategy:     strategy,
		Description:  description,
		Trades:       trades,
		TradeCount:   len(trades),
		TotalCost:    sumCost(trades),
		EstimatedTax: sumTax(trades),
		CashRequired: cash,
	}
}
