package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// AnalyzeRebalancing plans a rebalance of the ring named in req. Every failure,
// including an unknown ring, is reported in the result rather than as an error.
func (s *Service) AnalyzeRebalancing(ctx context.Context, req entities.RebalanceRequest) *entities.RebalanceAnalysis {
	analysis := s.analyzeRebalancing(ctx, req)
	metrics.RecordRebalanceAnalysis(analysis.Success)
	if !analysis.Success {
		s.logger.Infow("Rebalancing analysis failed",
			"ring_id", req.RingID.String(),
			"errors", analysis.Errors)
		return analysis
	}
	s.logger.Debugw("Rebalancing analysis completed",
		"ring_id", req.RingID.String(),
		"trades", len(analysis.Trades),
		"total_cost", analysis.TotalCost.String())
	return analysis
}

func (s *Service) analyzeRebalancing(ctx context.Context, req entities.RebalanceRequest) *entities.RebalanceAnalysis {
	if err := s.validateStruct(req); err != nil {
		return entities.FailedAnalysis(req.RingID, err.Error())
	}
	if req.MinTradeAmount != nil && req.MinTradeAmount.IsNegative() {
		return entities.FailedAnalysis(req.RingID, "min_trade_amount must not be negative")
	}

	ring, err := s.repo.GetByID(ctx, req.RingID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return entities.FailedAnalysis(req.RingID, ReasonRingNotFound)
		}
		s.logger.Errorw("Failed to load ring for analysis", "error", err, "ring_id", req.RingID.String())
		return entities.FailedAnalysis(req.RingID, fmt.Sprintf("Ring could not be loaded: %v", err))
	}
	return s.engine.AnalyzeRebalancing(ring, req)
}

// GetPerformanceAnalysis returns the performance analysis of the ring.
func (s *Service) GetPerformanceAnalysis(ctx context.Context, id uuid.UUID) (*entities.AllocationPerformance, error) {
	ring, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}
	return s.engine.AnalyzePerformance(ring), nil
}
