package allocation

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

const topHoldingsPerClass = 5

// CreateDefaultRing builds a ring from the live portfolio: one asset class per
// category held, targets seeded from the current weights.
func (s *Service) CreateDefaultRing(ctx context.Context, req entities.CreateDefaultRingRequest) (*entities.AllocationRing, error) {
	ring, err := s.createDefaultRing(ctx, req)
	metrics.RecordRingOperation("create_default", err)
	return ring, err
}

func (s *Service) createDefaultRing(ctx context.Context, req entities.CreateDefaultRingRequest) (*entities.AllocationRing, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	snapshot, err := s.fetchPortfolio(ctx, req.UserID, req.PortfolioID)
	if err != nil {
		return nil, err
	}

	currency := snapshot.Currency
	if !currency.IsValid() {
		currency = entities.CurrencyAUD
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Portfolio allocation"
	}

	inputs := classInputsFromHoldings(snapshot.Holdings, JurisdictionFor(currency) == JurisdictionNZ)
	seedTargets(inputs)

	s.logger.Infow("Creating default ring from portfolio",
		"user_id", req.UserID.String(),
		"portfolio_id", req.PortfolioID,
		"holdings", len(snapshot.Holdings),
		"asset_classes", len(inputs))

	return s.createRing(ctx, entities.CreateRingRequest{
		UserID:       req.UserID,
		Name:         name,
		PortfolioID:  req.PortfolioID,
		Currency:     currency,
		AssetClasses: inputs,
	})
}

// RefreshValuations pulls current valuations for the ring's linked portfolio,
// rewrites the asset class values, recalculates and records a drift sample.
func (s *Service) RefreshValuations(ctx context.Context, ringID uuid.UUID) (*entities.AllocationRing, error) {
	current, err := s.repo.GetByID(ctx, ringID)
	if err != nil {
		return nil, s.lookupError(err, ringID)
	}
	if current.PortfolioID == "" {
		return nil, apperrors.NewValidationError("portfolio_id", "ring is not linked to a portfolio")
	}

	snapshot, err := s.fetchPortfolio(ctx, current.UserID, current.PortfolioID)
	if err != nil {
		metrics.RecordRingOperation("refresh_valuations", err)
		return nil, err
	}

	ring, err := s.mutate(ctx, ringID, "refresh_valuations", func(ring *entities.AllocationRing) (bool, error) {
		applyValuations(ring, snapshot.Holdings)
		reapplyActiveTargets(ring)

		now := s.now().UTC()
		s.recalculate(ring, now)

		maxAbs, total := MaxAbsVariance(ring.AssetClasses)
		ring.DriftHistory = append(ring.DriftHistory, entities.DriftSample{
			Timestamp:        now,
			MaxAbsVariance:   maxAbs,
			TotalAbsVariance: total,
			PortfolioValue:   ring.PortfolioValue,
		})
		if over := len(ring.DriftHistory) - s.cfg.HistoryLimit; over > 0 {
			ring.DriftHistory = append([]entities.DriftSample(nil), ring.DriftHistory[over:]...)
		}
		metrics.RecordDrift(maxAbs)
		return false, nil
	})
	metrics.RecordRingOperation("refresh_valuations", err)
	return ring, err
}

func (s *Service) fetchPortfolio(ctx context.Context, userID uuid.UUID, portfolioID string) (*entities.PortfolioSnapshot, error) {
	if s.provider == nil {
		return nil, apperrors.NewInternalError("portfolio data provider is not configured")
	}
	snapshot, err := s.provider.GetPortfolio(ctx, userID, portfolioID)
	if err != nil {
		s.logger.Errorw("Portfolio provider request failed",
			"error", err,
			"user_id", userID.String(),
			"portfolio_id", portfolioID)
		return nil, apperrors.WrapExternal(err, "portfolio_provider", apperrors.CodePortfolioProvider)
	}
	if snapshot == nil {
		return nil, apperrors.NewNotFoundError("Portfolio", portfolioID)
	}
	return snapshot, nil
}

func holdingCategory(h entities.PortfolioHolding) entities.AssetClassCategory {
	if h.AssetClass.IsValid() {
		return h.AssetClass
	}
	return entities.AssetClassOther
}

// classInputsFromHoldings groups holdings into one asset class per category,
// in category display order.
func classInputsFromHoldings(holdings []entities.PortfolioHolding, offshoreIsFIF bool) []entities.AssetClassInput {
	grouped := make(map[entities.AssetClassCategory][]entities.PortfolioHolding)
	for _, h := range holdings {
		c := holdingCategory(h)
		grouped[c] = append(grouped[c], h)
	}

	inputs := make([]entities.AssetClassInput, 0, len(grouped))
	for _, cat := range entities.AllAssetClassCategories() {
		hs, ok := grouped[cat]
		if !ok {
			continue
		}
		total := decimal.Zero
		for _, h := range hs {
			total = total.Add(h.Value)
		}
		inputs = append(inputs, entities.AssetClassInput{
			Category:            cat,
			Name:                categoryLabel(cat),
			CurrentValue:        total,
			GeographicBreakdown: regionalBreakdown(hs, total, offshoreIsFIF),
			TopHoldings:         topHoldings(hs, total),
		})
	}
	return inputs
}

func regionalBreakdown(holdings []entities.PortfolioHolding, total decimal.Decimal, offshoreIsFIF bool) []entities.GeographicAllocation {
	out := make([]entities.GeographicAllocation, 0)
	index := make(map[string]int)
	for _, h := range holdings {
		region := h.Region
		if region == "" {
			continue
		}
		i, ok := index[region]
		if !ok {
			i = len(out)
			index[region] = i
			out = append(out, entities.GeographicAllocation{
				Region:        region,
				IsDomestic:    h.IsDomestic,
				FIFApplicable: offshoreIsFIF && !h.IsDomestic,
			})
		}
		out[i].Value = out[i].Value.Add(h.Value)
	}
	for i := range out {
		out[i].Percentage = percentageOf(out[i].Value, total)
	}
	return out
}

func topHoldings(holdings []entities.PortfolioHolding, total decimal.Decimal) []entities.TopHolding {
	sorted := append([]entities.PortfolioHolding(nil), holdings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value.GreaterThan(sorted[j].Value)
	})
	if len(sorted) > topHoldingsPerClass {
		sorted = sorted[:topHoldingsPerClass]
	}
	out := make([]entities.TopHolding, 0, len(sorted))
	for _, h := range sorted {
		out = append(out, entities.TopHolding{
			Symbol:     h.Symbol,
			Name:       h.Name,
			Value:      h.Value,
			Percentage: percentageOf(h.Value, total),
		})
	}
	return out
}

// seedTargets sets each target to the current weight rounded to 2 dp and
// gives the rounding residual to the largest class so targets sum to 100.
func seedTargets(inputs []entities.AssetClassInput) {
	total := decimal.Zero
	for _, in := range inputs {
		total = total.Add(in.CurrentValue)
	}
	if !total.IsPositive() {
		return
	}

	hundred := decimal.NewFromInt(100)
	sum := decimal.Zero
	largest := 0
	for i := range inputs {
		pct := inputs[i].CurrentValue.Div(total).Mul(hundred).Round(2)
		inputs[i].TargetPercentage = pct.InexactFloat64()
		sum = sum.Add(pct)
		if inputs[i].CurrentValue.GreaterThan(inputs[largest].CurrentValue) {
			largest = i
		}
	}
	residual := hundred.Sub(sum)
	if !residual.IsZero() {
		adjusted := decimal.NewFromFloat(inputs[largest].TargetPercentage).Add(residual)
		inputs[largest].TargetPercentage = adjusted.InexactFloat64()
	}
}

// applyValuations distributes each category's provider value over the ring's
// asset classes of that category in proportion to their previous values.
// Categories the provider no longer reports drop to zero; new ones are added
// with a zero target.
func applyValuations(ring *entities.AllocationRing, holdings []entities.PortfolioHolding) {
	values := make(map[entities.AssetClassCategory]decimal.Decimal)
	grouped := make(map[entities.AssetClassCategory][]entities.PortfolioHolding)
	for _, h := range holdings {
		c := holdingCategory(h)
		values[c] = values[c].Add(h.Value)
		grouped[c] = append(grouped[c], h)
	}

	catValue := make(map[entities.AssetClassCategory]decimal.Decimal)
	catCount := make(map[entities.AssetClassCategory]int)
	for _, ac := range ring.AssetClasses {
		catValue[ac.Category] = catValue[ac.Category].Add(ac.CurrentValue)
		catCount[ac.Category]++
	}

	for i := range ring.AssetClasses {
		ac := &ring.AssetClasses[i]
		reported, ok := values[ac.Category]
		if !ok {
			ac.CurrentValue = decimal.Zero
			continue
		}
		if prev := catValue[ac.Category]; prev.IsPositive() {
			ac.CurrentValue = reported.Mul(ac.CurrentValue).Div(prev).Round(2)
		} else {
			ac.CurrentValue = reported.Div(decimal.NewFromInt(int64(catCount[ac.Category]))).Round(2)
		}
	}

	nzd := JurisdictionFor(ring.Currency) == JurisdictionNZ
	for _, cat := range entities.AllAssetClassCategories() {
		if _, held := catCount[cat]; held {
			continue
		}
		hs, ok := grouped[cat]
		if !ok {
			continue
		}
		in := entities.AssetClassInput{
			Category:            cat,
			Name:                categoryLabel(cat),
			CurrentValue:        values[cat],
			GeographicBreakdown: regionalBreakdown(hs, values[cat], nzd),
			TopHoldings:         topHoldings(hs, values[cat]),
		}
		ring.AssetClasses = append(ring.AssetClasses, newAssetClass(ring.ID, in))
	}
}

func categoryLabel(c entities.AssetClassCategory) string {
	if c == entities.AssetClassETFs {
		return "ETFs"
	}
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
