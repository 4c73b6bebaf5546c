package allocation

import (
	"math"
	"time"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// portfolioVolatility combines per-class volatilities assuming no correlation
// between asset classes: sqrt(Σ (w·σ)²).
func portfolioVolatility(classes []entities.AssetClassAllocation, w []float64) float64 {
	contrib := make([]float64, len(classes))
	for i, ac := range classes {
		contrib[i] = w[i] * ac.Performance.Volatility
	}
	return floats.Norm(contrib, 2)
}

// benchmarkWeights uses the asset classes' target weights as the policy
// benchmark. Targets are normalised when they do not sum to 100; a ring with no
// targets is benchmarked against itself.
func benchmarkWeights(classes []entities.AssetClassAllocation) []float64 {
	w := make([]float64, len(classes))
	sum := 0.0
	for i, ac := range classes {
		w[i] = ac.TargetPercentage
		sum += ac.TargetPercentage
	}
	if sum <= 0 {
		return weights(classes)
	}
	floats.Scale(1/sum, w)
	return w
}

// AnalyzePerformance computes the performance analysis of a recalculated ring.
func (e *Engine) AnalyzePerformance(ring *entities.AllocationRing) *entities.AllocationPerformance {
	classes := ring.AssetClasses
	wp := weights(classes)
	wb := benchmarkWeights(classes)

	returns := make([]float64, len(classes))
	afterTax := make([]float64, len(classes))
	benchReturns := make([]float64, len(classes))
	for i, ac := range classes {
		returns[i] = ac.Performance.OneYearReturn
		afterTax[i] = ac.Performance.AfterTaxReturn
		benchReturns[i] = ac.Performance.BenchmarkReturn
	}

	perf := &entities.AllocationPerformance{
		RingID:       ring.ID,
		Currency:     ring.Currency,
		TotalValue:   ring.PortfolioValue,
		AssetClasses: make([]entities.AssetClassPerformance, 0, len(classes)),
		CalculatedAt: time.Now().UTC(),
	}
	if len(classes) == 0 {
		perf.Attribution = make([]entities.AttributionEffect, 0)
		return perf
	}

	perf.OverallReturn = floats.Dot(wp, returns)
	benchmarkReturn := floats.Dot(wb, benchReturns)

	for i, ac := range classes {
		perf.AssetClasses = append(perf.AssetClasses, entities.AssetClassPerformance{
			AssetClassID:    ac.ID,
			Category:        ac.Category,
			Name:            ac.Name,
			Weight:          ac.CurrentPercentage,
			Return:          returns[i],
			Contribution:    wp[i] * returns[i],
			AfterTaxReturn:  afterTax[i],
			BenchmarkReturn: benchReturns[i],
			ExcessReturn:    returns[i] - benchReturns[i],
		})
	}

	perf.Attribution = attribution(classes, wp, wb, returns, benchReturns, benchmarkReturn)
	perf.Benchmark = entities.BenchmarkComparison{
		PortfolioReturn: perf.OverallReturn,
		BenchmarkReturn: benchmarkReturn,
		ExcessReturn:    perf.OverallReturn - benchmarkReturn,
		Outperformed:    perf.OverallReturn > benchmarkReturn,
	}
	perf.Risk = e.riskMetrics(ring, wp, perf.OverallReturn)

	after := floats.Dot(wp, afterTax)
	perf.TaxAdjusted = entities.TaxAdjustedPerformance{
		PreTaxReturn:   perf.OverallReturn,
		AfterTaxReturn: after,
		TaxDrag:        after - perf.OverallReturn,
		TaxEfficiency:  ring.TaxInsights.OverallTaxEfficiency,
	}
	return perf
}

// attribution is a Brinson-Fachler decomposition by category, in list order of
// first appearance.
func attribution(classes []entities.AssetClassAllocation, wp, wb, rp, rb []float64, total float64) []entities.AttributionEffect {
	type bucket struct {
		wp, wb       float64
		rpSum, rbSum float64
		rbPlain      []float64
	}
	order := make([]entities.AssetClassCategory, 0)
	buckets := make(map[entities.AssetClassCategory]*bucket)
	for i, ac := range classes {
		b, ok := buckets[ac.Category]
		if !ok {
			b = &bucket{}
			buckets[ac.Category] = b
			order = append(order, ac.Category)
		}
		b.wp += wp[i]
		b.wb += wb[i]
		b.rpSum += wp[i] * rp[i]
		b.rbSum += wb[i] * rb[i]
		b.rbPlain = append(b.rbPlain, rb[i])
	}

	out := make([]entities.AttributionEffect, 0, len(order))
	for _, cat := range order {
		b := buckets[cat]
		catBench := stat.Mean(b.rbPlain, nil)
		if b.wb > 0 {
			catBench = b.rbSum / b.wb
		}
		catPort := catBench
		if b.wp > 0 {
			catPort = b.rpSum / b.wp
		}

		alloc := (b.wp - b.wb) * (catBench - total)
		sel := b.wb * (catPort - catBench)
		inter := (b.wp - b.wb) * (catPort - catBench)
		out = append(out, entities.AttributionEffect{
			Category:          cat,
			PortfolioWeight:   b.wp * 100,
			BenchmarkWeight:   b.wb * 100,
			AllocationEffect:  alloc,
			SelectionEffect:   sel,
			InteractionEffect: inter,
			TotalEffect:       alloc + sel + inter,
		})
	}
	return out
}

func (e *Engine) riskMetrics(ring *entities.AllocationRing, wp []float64, overallReturn float64) entities.RiskMetrics {
	classes := ring.AssetClasses
	vol := portfolioVolatility(classes, wp)

	weightedVol := 0.0
	for i, ac := range classes {
		weightedVol += wp[i] * ac.Performance.Volatility
	}

	risk := entities.RiskMetrics{
		Volatility:         vol,
		ConcentrationIndex: floats.Dot(wp, wp),
	}
	if vol > 0 {
		risk.SharpeRatio = (overallReturn - e.cfg.RiskFreeRate) / vol
		risk.DiversificationRatio = weightedVol / vol
	}

	risk.MaxDrift, _ = MaxAbsVariance(classes)
	if len(ring.DriftHistory) >= 2 {
		samples := make([]float64, len(ring.DriftHistory))
		for i, s := range ring.DriftHistory {
			samples[i] = s.MaxAbsVariance
		}
		risk.DriftVolatility = stat.StdDev(samples, nil)
	}
	if math.IsNaN(risk.DriftVolatility) {
		risk.DriftVolatility = 0
	}
	return risk
}
