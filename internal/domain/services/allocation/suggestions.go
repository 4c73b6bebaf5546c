package allocation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// MaxResolvedSuggestions bounds how many rejected or implemented suggestions a
// ring keeps once their drift or tax condition no longer applies.
const MaxResolvedSuggestions = 20

// generateSuggestions builds the drift-correction and tax-optimisation
// suggestions for ring. A regenerated suggestion keeps the status the user gave
// its predecessor with the same id, unless the predecessor was resolved and the
// proposed trades have since changed. Rejected and implemented suggestions
// that are not regenerated stay on the ring after the open ones.
func (e *Engine) generateSuggestions(ring *entities.AllocationRing) []entities.RebalancingSuggestion {
	previous := make(map[uuid.UUID]entities.RebalancingSuggestion, len(ring.RebalancingSuggestions))
	for _, s := range ring.RebalancingSuggestions {
		previous[s.ID] = s
	}

	out := make([]entities.RebalancingSuggestion, 0, 2)
	if s, ok := e.driftCorrection(ring); ok {
		out = append(out, s)
	}
	if s, ok := e.taxOptimization(ring); ok {
		out = append(out, s)
	}

	regenerated := make(map[uuid.UUID]struct{}, len(out))
	for i := range out {
		regenerated[out[i].ID] = struct{}{}
		prev, ok := previous[out[i].ID]
		if !ok || prev.Status == entities.SuggestionStatusPending || prev.Status == "" {
			continue
		}
		// a resolved suggestion only covers the trades it proposed
		if prev.Status.IsResolved() && !sameTrades(prev.ProposedChanges, out[i].ProposedChanges) {
			continue
		}
		out[i].Status = prev.Status
		if prev.ResolvedAt != nil {
			t := *prev.ResolvedAt
			out[i].ResolvedAt = &t
		}
	}

	resolved := make([]entities.RebalancingSuggestion, 0)
	for _, s := range ring.RebalancingSuggestions {
		if _, ok := regenerated[s.ID]; ok || !s.Status.IsResolved() {
			continue
		}
		resolved = append(resolved, s.Clone())
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolvedAt(resolved[i]).After(resolvedAt(resolved[j]))
	})
	if len(resolved) > MaxResolvedSuggestions {
		resolved = resolved[:MaxResolvedSuggestions]
	}
	return append(out, resolved...)
}

func sameTrades(a, b []entities.ProposedChange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].AssetClassID != b[i].AssetClassID || a[i].Action != b[i].Action || !a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}

func resolvedAt(s entities.RebalancingSuggestion) time.Time {
	if s.ResolvedAt == nil {
		return time.Time{}
	}
	return *s.ResolvedAt
}

// suggestionID is stable for a given ring, suggestion type and set of asset classes.
func suggestionID(ringID uuid.UUID, kind entities.SuggestionType, classes []entities.AssetClassAllocation) uuid.UUID {
	parts := make([]string, 0, len(classes)+1)
	parts = append(parts, string(kind))
	for _, ac := range classes {
		parts = append(parts, ac.ID.String())
	}
	return uuid.NewSHA1(ringID, []byte(strings.Join(parts, ":")))
}

func (e *Engine) driftCorrection(ring *entities.AllocationRing) (entities.RebalancingSuggestion, bool) {
	drifted := make([]entities.AssetClassAllocation, 0)
	for _, ac := range ring.AssetClasses {
		if math.Abs(ac.Variance) > DriftCorrectionThreshold {
			drifted = append(drifted, ac)
		}
	}
	if len(drifted) == 0 {
		return entities.RebalancingSuggestion{}, false
	}

	jurisdiction := JurisdictionFor(ring.Currency)
	changes := make([]entities.ProposedChange, 0, len(drifted))
	for _, ac := range drifted {
		changes = append(changes, e.proposeChange(ac, ac.TargetPercentage, ring.PortfolioValue, jurisdiction))
	}

	labels := make([]string, 0, len(drifted))
	for _, ac := range drifted {
		labels = append(labels, fmt.Sprintf("%s (%s)", ac.Name, formatSignedPercent(ac.Variance)))
	}

	return entities.RebalancingSuggestion{
		ID:       suggestionID(ring.ID, entities.SuggestionDriftCorrection, drifted),
		RingID:   ring.ID,
		Type:     entities.SuggestionDriftCorrection,
		Priority: entities.SuggestionPriorityHigh,
		Title:    "Correct allocation drift",
		Description: fmt.Sprintf("%d asset class(es) have drifted more than %.0f percentage points from target: %s",
			len(drifted), DriftCorrectionThreshold, strings.Join(labels, ", ")),
		ProposedChanges:     changes,
		ExpectedImpact:      expectedImpact(ring.AssetClasses, changes),
		TaxImplications:     taxImplications(changes, ring.AssetClasses, jurisdiction),
		ImplementationSteps: tradeSteps(changes, ring.Currency),
		Urgency:             entities.UrgencySoon,
		Status:              entities.SuggestionStatusPending,
	}, true
}

// taxOptimization bundles asset classes that combine a low tax-efficiency
// score with high turnover. It proposes switching each into a low-turnover
// vehicle of the same asset class, so weights stay where they are.
func (e *Engine) taxOptimization(ring *entities.AllocationRing) (entities.RebalancingSuggestion, bool) {
	flagged := make([]entities.AssetClassAllocation, 0)
	combinedWeight := 0.0
	for _, ac := range ring.AssetClasses {
		if isTaxInefficient(ac) {
			flagged = append(flagged, ac)
			combinedWeight += ac.CurrentPercentage
		}
	}
	if len(flagged) == 0 {
		return entities.RebalancingSuggestion{}, false
	}

	jurisdiction := JurisdictionFor(ring.Currency)
	changes := make([]entities.ProposedChange, 0, len(flagged))
	efficiencyDelta := 0.0
	for _, ac := range flagged {
		amount := ac.CurrentValue.Round(2)
		changes = append(changes, entities.ProposedChange{
			AssetClassID:   ac.ID,
			Category:       ac.Category,
			Name:           ac.Name,
			FromPercentage: ac.CurrentPercentage,
			ToPercentage:   ac.CurrentPercentage,
			Action:         entities.TradeActionSell,
			Amount:         amount,
			// a switch pays costs on both legs
			EstimatedCost: e.transactionCost(amount).Mul(decimal.NewFromInt(2)),
			TaxImpact:     e.estimateCapitalGainsTax(ac, amount, jurisdiction),
		})
		efficiencyDelta += (ReplacementEfficiencyScore - ac.TaxCharacteristics.TaxEfficiencyScore) * ac.CurrentPercentage / 100
	}

	priority := entities.SuggestionPriorityMedium
	if combinedWeight >= TaxOptimizationHighWeight {
		priority = entities.SuggestionPriorityHigh
	}

	names := make([]string, 0, len(flagged))
	for _, ac := range flagged {
		names = append(names, ac.Name)
	}

	steps := make([]string, 0, len(flagged)+2)
	steps = append(steps, "Identify low-turnover funds or direct holdings covering the same exposure")
	for _, ch := range changes {
		steps = append(steps, fmt.Sprintf("Switch %s of %s into the replacement holding", formatMoney(ch.Amount, ring.Currency), ch.Name))
	}
	steps = append(steps, "Review realised gains before the end of the financial year")

	return entities.RebalancingSuggestion{
		ID:       suggestionID(ring.ID, entities.SuggestionTaxOptimization, flagged),
		RingID:   ring.ID,
		Type:     entities.SuggestionTaxOptimization,
		Priority: priority,
		Title:    "Reduce tax drag from high-turnover holdings",
		Description: fmt.Sprintf("%s combine tax efficiency below %.0f with turnover above %.0f%% (%s of the portfolio)",
			strings.Join(names, ", "), LowTaxEfficiencyScore, HighTurnoverRate, formatPercent(combinedWeight)),
		ProposedChanges: changes,
		ExpectedImpact: entities.ExpectedImpact{
			TaxEfficiencyDelta: efficiencyDelta,
			Cost:               sumCost(changes),
		},
		TaxImplications:     taxImplications(changes, ring.AssetClasses, jurisdiction),
		ImplementationSteps: steps,
		Urgency:             entities.UrgencyWithinQuarter,
		Status:              entities.SuggestionStatusPending,
	}, true
}

// proposeChange moves ac from its current weight to target.
func (e *Engine) proposeChange(ac entities.AssetClassAllocation, target float64, total decimal.Decimal, jurisdiction string) entities.ProposedChange {
	delta := target - ac.CurrentPercentage
	action := entities.TradeActionBuy
	if delta < 0 {
		action = entities.TradeActionSell
	}
	amount := tradeAmount(delta, total)

	change := entities.ProposedChange{
		AssetClassID:   ac.ID,
		Category:       ac.Category,
		Name:           ac.Name,
		FromPercentage: ac.CurrentPercentage,
		ToPercentage:   target,
		Action:         action,
		Amount:         amount,
		EstimatedCost:  e.transactionCost(amount),
		TaxImpact:      decimal.Zero,
	}
	if action == entities.TradeActionSell {
		change.TaxImpact = e.estimateCapitalGainsTax(ac, amount, jurisdiction)
	}
	return change
}

// expectedImpact estimates return, risk and tax-efficiency deltas of applying
// changes, holding the other asset classes at their current weights.
func expectedImpact(classes []entities.AssetClassAllocation, changes []entities.ProposedChange) entities.ExpectedImpact {
	proposed := make(map[uuid.UUID]float64, len(changes))
	for _, ch := range changes {
		proposed[ch.AssetClassID] = ch.ToPercentage
	}

	current := weights(classes)
	next := make([]float64, len(classes))
	var returnDelta, efficiencyDelta float64
	for i, ac := range classes {
		next[i] = current[i]
		if to, ok := proposed[ac.ID]; ok {
			next[i] = to / 100
		}
		dw := next[i] - current[i]
		returnDelta += dw * ac.Performance.OneYearReturn
		efficiencyDelta += dw * ac.TaxCharacteristics.TaxEfficiencyScore
	}

	return entities.ExpectedImpact{
		ReturnDelta:        returnDelta,
		RiskDelta:          portfolioVolatility(classes, next) - portfolioVolatility(classes, current),
		TaxEfficiencyDelta: efficiencyDelta,
		Cost:               sumCost(changes),
	}
}

// tradeSteps lists sells before buys so proceeds fund the purchases.
func tradeSteps(changes []entities.ProposedChange, currency entities.Currency) []string {
	steps := make([]string, 0, len(changes)+2)
	steps = append(steps, "Review the proposed trades and their tax implications")
	for _, ch := range changes {
		if ch.Action == entities.TradeActionSell && ch.Amount.IsPositive() {
			steps = append(steps, fmt.Sprintf("Sell %s of %s (%s -> %s)",
				formatMoney(ch.Amount, currency), ch.Name, formatPercent(ch.FromPercentage), formatPercent(ch.ToPercentage)))
		}
	}
	for _, ch := range changes {
		if ch.Action == entities.TradeActionBuy && ch.Amount.IsPositive() {
			steps = append(steps, fmt.Sprintf("Buy %s of %s (%s -> %s)",
				formatMoney(ch.Amount, currency), ch.Name, formatPercent(ch.FromPercentage), formatPercent(ch.ToPercentage)))
		}
	}
	steps = append(steps, "Confirm fills and review the recalculated ring")
	return steps
}
