package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// AcceptSuggestion marks a pending suggestion as accepted. Accepting an
// accepted suggestion is a no-op.
func (s *Service) AcceptSuggestion(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.mutate(ctx, ringID, "accept_suggestion", func(ring *entities.AllocationRing) (bool, error) {
		sg, err := findSuggestion(ring, suggestionID)
		if err != nil {
			return false, err
		}
		if sg.Status.IsResolved() {
			return false, resolvedError(sg)
		}
		sg.Status = entities.SuggestionStatusAccepted
		return false, nil
	})
	metrics.RecordRingOperation("accept_suggestion", err)
	return ring, err
}

// RejectSuggestion marks a pending or accepted suggestion as rejected.
func (s *Service) RejectSuggestion(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.mutate(ctx, ringID, "reject_suggestion", func(ring *entities.AllocationRing) (bool, error) {
		sg, err := findSuggestion(ring, suggestionID)
		if err != nil {
			return false, err
		}
		if sg.Status.IsResolved() {
			return false, resolvedError(sg)
		}
		now := s.now().UTC()
		sg.Status = entities.SuggestionStatusRejected
		sg.ResolvedAt = &now
		return false, nil
	})
	metrics.RecordRingOperation("reject_suggestion", err)
	return ring, err
}

// ExecuteRebalancing submits the trades of an accepted suggestion, applies the
// fills to the asset class values and recalculates the ring. When the trade
// execution service fails the ring is left untouched and the error is returned
// alongside a failed result.
func (s *Service) ExecuteRebalancing(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.ExecutionResult, error) {
	if s.executor == nil {
		return nil, apperrors.NewInternalError("trade execution is not configured")
	}

	result := &entities.ExecutionResult{
		RingID:       ringID,
		SuggestionID: suggestionID,
		Fills:        make([]entities.TradeFill, 0),
	}

	ring, err := s.mutate(ctx, ringID, "execute_rebalancing", func(ring *entities.AllocationRing) (bool, error) {
		sg, err := findSuggestion(ring, suggestionID)
		if err != nil {
			return false, err
		}
		switch {
		case sg.Status.IsResolved():
			return false, resolvedError(sg)
		case sg.Status != entities.SuggestionStatusAccepted:
			return false, apperrors.NewConflictError(apperrors.CodeConflict, "suggestion must be accepted before it can be executed")
		}

		orders := buildOrders(ring, sg)
		if len(orders) == 0 {
			return false, apperrors.NewConflictError(apperrors.CodeConflict, "suggestion has no trades to execute")
		}

		fills, err := s.executor.ExecuteTrades(ctx, orders)
		if err != nil {
			s.logger.Errorw("Trade execution failed",
				"error", err,
				"ring_id", ringID.String(),
				"suggestion_id", suggestionID.String(),
				"orders", len(orders))
			result.Errors = append(result.Errors, err.Error())
			return false, apperrors.WrapExternal(err, "trade_execution", apperrors.CodeTradeExecution)
		}

		result.Fills = fills
		result.Errors = append(result.Errors, applyFills(ring, orders, fills)...)
		result.Success = len(result.Errors) == 0

		now := s.now().UTC()
		if result.Success {
			sg.Status = entities.SuggestionStatusImplemented
			sg.ResolvedAt = &now
		}
		result.ExecutedAt = now
		return true, nil
	})
	metrics.RecordRingOperation("execute_rebalancing", err)
	if err != nil {
		if result.ExecutedAt.IsZero() {
			result.ExecutedAt = s.now().UTC()
		}
		if apperrors.IsExternal(err) {
			return result, err
		}
		return nil, err
	}

	result.Ring = ring
	s.logger.Infow("Rebalancing executed",
		"ring_id", ringID.String(),
		"suggestion_id", suggestionID.String(),
		"fills", len(result.Fills),
		"success", result.Success)
	return result, nil
}

func findSuggestion(ring *entities.AllocationRing, id uuid.UUID) (*entities.RebalancingSuggestion, error) {
	idx := ring.SuggestionIndex(id)
	if idx < 0 {
		return nil, apperrors.NewNotFoundError("Suggestion", id.String())
	}
	return &ring.RebalancingSuggestions[idx], nil
}

func resolvedError(sg *entities.RebalancingSuggestion) error {
	return apperrors.NewConflictError(apperrors.CodeSuggestionResolved,
		fmt.Sprintf("suggestion is already %s", sg.Status)).
		WithDetail("suggestion_id", sg.ID.String())
}

// buildOrders turns a suggestion's changes into orders. Sells go first so
// their proceeds fund the buys. A tax-optimisation switch sells and rebuys the
// same amount.
func buildOrders(ring *entities.AllocationRing, sg *entities.RebalancingSuggestion) []entities.TradeOrder {
	orders := make([]entities.TradeOrder, 0, len(sg.ProposedChanges)*2)
	add := func(ch entities.ProposedChange, action entities.TradeAction) {
		orders = append(orders, entities.TradeOrder{
			ClientOrderID: fmt.Sprintf("%s-%d", sg.ID, len(orders)),
			RingID:        ring.ID,
			PortfolioID:   ring.PortfolioID,
			AssetClassID:  ch.AssetClassID,
			Category:      ch.Category,
			Action:        action,
			Amount:        ch.Amount,
			Currency:      ring.Currency,
		})
	}

	for _, ch := range sg.ProposedChanges {
		if ch.Action == entities.TradeActionSell && ch.Amount.IsPositive() {
			add(ch, entities.TradeActionSell)
		}
	}
	for _, ch := range sg.ProposedChanges {
		if !ch.Amount.IsPositive() {
			continue
		}
		switch {
		case sg.Type == entities.SuggestionTaxOptimization:
			add(ch, entities.TradeActionBuy)
		case ch.Action == entities.TradeActionBuy:
			add(ch, entities.TradeActionBuy)
		}
	}
	return orders
}

// applyFills moves filled amounts into the asset class values and returns a
// message for every order that did not fill.
func applyFills(ring *entities.AllocationRing, orders []entities.TradeOrder, fills []entities.TradeFill) []string {
	byID := make(map[string]entities.TradeOrder, len(orders))
	for _, o := range orders {
		byID[o.ClientOrderID] = o
	}

	filled := make(map[string]bool, len(fills))
	var errs []string
	for _, f := range fills {
		order, ok := byID[f.ClientOrderID]
		if !ok {
			errs = append(errs, fmt.Sprintf("unexpected fill for order %s", f.ClientOrderID))
			continue
		}
		metrics.RecordRebalanceTrade(string(order.Action), f.Success)
		if !f.Success {
			msg := f.Error
			if msg == "" {
				msg = "not filled"
			}
			errs = append(errs, fmt.Sprintf("order %s: %s", f.ClientOrderID, msg))
			continue
		}
		filled[f.ClientOrderID] = true

		idx := ring.AssetClassIndex(order.AssetClassID)
		if idx < 0 {
			continue
		}
		ac := &ring.AssetClasses[idx]
		switch order.Action {
		case entities.TradeActionSell:
			ac.CurrentValue = ac.CurrentValue.Sub(f.FilledAmount)
		case entities.TradeActionBuy:
			ac.CurrentValue = ac.CurrentValue.Add(f.FilledAmount)
		}
		ac.CurrentValue = ac.CurrentValue.Sub(f.Fees)
		if ac.CurrentValue.IsNegative() {
			ac.CurrentValue = decimal.Zero
		}
	}

	for _, o := range orders {
		if !filled[o.ClientOrderID] && !hasFill(fills, o.ClientOrderID) {
			errs = append(errs, fmt.Sprintf("order %s: no fill reported", o.ClientOrderID))
		}
	}
	return errs
}

func hasFill(fills []entities.TradeFill, clientOrderID string) bool {
	for _, f := range fills {
		if f.ClientOrderID == clientOrderID {
			return true
		}
	}
	return false
}
