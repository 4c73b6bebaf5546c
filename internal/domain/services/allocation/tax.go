package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"gonum.org/v1/gonum/floats"
)

const (
	JurisdictionAU = "AU"
	JurisdictionNZ = "NZ"

	// AUCompanyTaxRate grosses up franked dividends.
	AUCompanyTaxRate = 0.30
	// AUCGTDiscount applies to gains on assets held for more than twelve months.
	AUCGTDiscount = 0.5

	LowTaxEfficiencyScore = 50.0
	HighTurnoverRate      = 30.0
	// TaxOptimizationHighWeight is the combined weight at which a
	// tax-optimisation suggestion is raised to high priority.
	TaxOptimizationHighWeight = 20.0
	// ReplacementEfficiencyScore is the score assumed for a low-turnover replacement.
	ReplacementEfficiencyScore = 75.0

	lowOverallEfficiency = 60.0
	notableTaxDrag       = -1.5
)

// NZFIFThreshold is the NZ$50,000 cost de minimis for foreign investment funds.
var NZFIFThreshold = decimal.NewFromInt(50000)

// JurisdictionFor maps the ring currency onto the tax rules applied to it.
// Only NZD rings are treated as New Zealand; everything else uses AU rules.
func JurisdictionFor(currency entities.Currency) string {
	if currency == entities.CurrencyNZD {
		return JurisdictionNZ
	}
	return JurisdictionAU
}

// weights returns currentPercentage/100 for every asset class.
func weights(classes []entities.AssetClassAllocation) []float64 {
	w := make([]float64, len(classes))
	for i, ac := range classes {
		w[i] = ac.CurrentPercentage / 100
	}
	return w
}

func (e *Engine) calculateTaxInsights(ring *entities.AllocationRing) entities.TaxInsights {
	classes := ring.AssetClasses
	jurisdiction := JurisdictionFor(ring.Currency)

	insights := entities.TaxInsights{
		Jurisdiction:    jurisdiction,
		Recommendations: make([]string, 0),
	}
	if len(classes) == 0 {
		return insights
	}

	w := weights(classes)
	scores := make([]float64, len(classes))
	drag := make([]float64, len(classes))
	for i, ac := range classes {
		scores[i] = ac.TaxCharacteristics.TaxEfficiencyScore
		drag[i] = ac.Performance.AfterTaxReturn - ac.Performance.OneYearReturn
	}
	insights.OverallTaxEfficiency = floats.Dot(scores, w)
	insights.EstimatedTaxDrag = floats.Dot(drag, w)

	switch jurisdiction {
	case JurisdictionAU:
		insights.Franking = frankingInsight(classes)
	case JurisdictionNZ:
		insights.FIF = fifInsight(classes)
	}

	insights.Recommendations = taxRecommendations(ring, insights)
	return insights
}

// frankingInsight estimates gross franking credits: value × yield × franked share × 30/70.
func frankingInsight(classes []entities.AssetClassAllocation) *entities.FrankingInsight {
	hundred := decimal.NewFromInt(100)
	grossUp := decimal.NewFromFloat(AUCompanyTaxRate).Div(decimal.NewFromFloat(1 - AUCompanyTaxRate))

	credits := decimal.Zero
	dividends := decimal.Zero
	franked := decimal.Zero
	for _, ac := range classes {
		income := ac.CurrentValue.Mul(decimal.NewFromFloat(ac.TaxCharacteristics.DividendYield)).Div(hundred)
		frankedIncome := income.Mul(decimal.NewFromFloat(ac.TaxCharacteristics.FrankingCreditRate)).Div(hundred)
		dividends = dividends.Add(income)
		franked = franked.Add(frankedIncome)
		credits = credits.Add(frankedIncome.Mul(grossUp))
	}

	share := 0.0
	if dividends.IsPositive() {
		share = franked.Div(dividends).Mul(hundred).InexactFloat64()
	}
	return &entities.FrankingInsight{
		EstimatedFrankingCredits: credits.Round(2),
		FrankedIncomeShare:       share,
	}
}

// fifInsight totals the offshore value subject to the FIF regime. A geographic
// breakdown, when present, takes precedence over the asset-class flag.
func fifInsight(classes []entities.AssetClassAllocation) *entities.FIFInsight {
	offshore := decimal.Zero
	for _, ac := range classes {
		offshore = offshore.Add(fifValue(ac))
	}
	return &entities.FIFInsight{
		OffshoreValue:    offshore.Round(2),
		Threshold:        NZFIFThreshold,
		ExceedsThreshold: offshore.GreaterThan(NZFIFThreshold),
	}
}

func fifValue(ac entities.AssetClassAllocation) decimal.Decimal {
	if len(ac.GeographicBreakdown) == 0 {
		if ac.TaxCharacteristics.FIFApplicable {
			return ac.CurrentValue
		}
		return decimal.Zero
	}
	total := decimal.Zero
	for _, geo := range ac.GeographicBreakdown {
		if geo.FIFApplicable && !geo.IsDomestic {
			total = total.Add(geo.Value)
		}
	}
	return total
}

func taxRecommendations(ring *entities.AllocationRing, insights entities.TaxInsights) []string {
	recs := make([]string, 0)

	if insights.OverallTaxEfficiency < lowOverallEfficiency {
		recs = append(recs, fmt.Sprintf(
			"Overall tax efficiency is %.1f; shifting weight toward lower-turnover holdings would reduce tax leakage",
			insights.OverallTaxEfficiency))
	}
	if insights.EstimatedTaxDrag < notableTaxDrag {
		recs = append(recs, fmt.Sprintf(
			"Tax is costing an estimated %.2f percentage points of return per year", -insights.EstimatedTaxDrag))
	}
	if insights.Franking != nil && insights.Franking.FrankedIncomeShare < 50 && hasDividendIncome(ring.AssetClasses) {
		recs = append(recs, "Less than half of dividend income is franked; Australian equities paying franked dividends would add franking credits")
	}
	if insights.FIF != nil && insights.FIF.ExceedsThreshold {
		recs = append(recs, fmt.Sprintf(
			"Offshore holdings of %s exceed the %s FIF threshold; FIF income must be calculated using the FDR or CV method",
			formatMoney(insights.FIF.OffshoreValue, ring.Currency), formatMoney(NZFIFThreshold, entities.CurrencyNZD)))
	}
	for _, ac := range ring.AssetClasses {
		if isTaxInefficient(ac) {
			recs = append(recs, fmt.Sprintf("%s: turnover of %.0f%% with a tax efficiency score of %.0f",
				ac.Name, ac.TaxCharacteristics.TurnoverRate, ac.TaxCharacteristics.TaxEfficiencyScore))
		}
	}
	return recs
}

func hasDividendIncome(classes []entities.AssetClassAllocation) bool {
	for _, ac := range classes {
		if ac.TaxCharacteristics.DividendYield > 0 && ac.CurrentValue.IsPositive() {
			return true
		}
	}
	return false
}

func isTaxInefficient(ac entities.AssetClassAllocation) bool {
	return ac.CurrentPercentage > 0 &&
		ac.TaxCharacteristics.TaxEfficiencyScore < LowTaxEfficiencyScore &&
		ac.TaxCharacteristics.TurnoverRate > HighTurnoverRate
}

// estimateCapitalGainsTax estimates tax on selling amount of ac. Sale proceeds
// are split into cost base and gain using the unrealised gain percentage.
// New Zealand has no general capital gains tax.
func (e *Engine) estimateCapitalGainsTax(ac entities.AssetClassAllocation, amount decimal.Decimal, jurisdiction string) decimal.Decimal {
	if jurisdiction == JurisdictionNZ {
		return decimal.Zero
	}
	gainPct := ac.TaxCharacteristics.UnrealizedGainPercentage
	if gainPct <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}

	g := decimal.NewFromFloat(gainPct)
	gain := amount.Mul(g).Div(g.Add(decimal.NewFromInt(100)))
	if ac.TaxCharacteristics.HeldOverTwelveMonths {
		gain = gain.Mul(decimal.NewFromFloat(AUCGTDiscount))
	}
	return gain.Mul(decimal.NewFromFloat(e.cfg.MarginalTaxRate)).Round(2)
}

// taxImplications summarises the tax consequences of a set of changes.
func taxImplications(changes []entities.ProposedChange, classes []entities.AssetClassAllocation, jurisdiction string) []entities.TaxImplication {
	out := make([]entities.TaxImplication, 0)

	totalTax := decimal.Zero
	undiscounted := 0
	fifSales := 0
	for _, ch := range changes {
		if ch.Action != entities.TradeActionSell {
			continue
		}
		totalTax = totalTax.Add(ch.TaxImpact)
		for _, ac := range classes {
			if ac.ID != ch.AssetClassID {
				continue
			}
			if ac.TaxCharacteristics.UnrealizedGainPercentage > 0 && !ac.TaxCharacteristics.HeldOverTwelveMonths {
				undiscounted++
			}
			if fifValue(ac).IsPositive() {
				fifSales++
			}
		}
	}

	switch jurisdiction {
	case JurisdictionAU:
		if totalTax.IsPositive() {
			out = append(out, entities.TaxImplication{
				Jurisdiction: JurisdictionAU,
				Description:  "Capital gains tax on realised gains from sales",
				EstimatedTax: totalTax,
			})
		}
		if undiscounted > 0 {
			out = append(out, entities.TaxImplication{
				Jurisdiction: JurisdictionAU,
				Description:  fmt.Sprintf("%d sale(s) fall inside twelve months and miss the 50%% CGT discount", undiscounted),
				EstimatedTax: decimal.Zero,
			})
		}
	case JurisdictionNZ:
		if fifSales > 0 {
			out = append(out, entities.TaxImplication{
				Jurisdiction: JurisdictionNZ,
				Description:  "Selling FIF interests part-way through the year can change the FIF income calculation (quick sale adjustment)",
				EstimatedTax: decimal.Zero,
			})
		}
	}
	return out
}

func sumTax(changes []entities.ProposedChange) decimal.Decimal {
	total := decimal.Zero
	for _, ch := range changes {
		total = total.Add(ch.TaxImpact)
	}
	return total
}

func sumCost(changes []entities.ProposedChange) decimal.Decimal {
	total := decimal.Zero
	for _, ch := range changes {
		total = total.Add(ch.EstimatedCost)
	}
	return total
}
