package allocation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// AddAssetClass appends an asset class to the ring.
func (s *Service) AddAssetClass(ctx context.Context, ringID uuid.UUID, in entities.AssetClassInput) (*entities.AllocationRing, error) {
	if err := s.validateAssetClassInput(in); err != nil {
		return nil, err
	}
	ring, err := s.mutate(ctx, ringID, "add_asset_class", func(ring *entities.AllocationRing) (bool, error) {
		ring.AssetClasses = append(ring.AssetClasses, newAssetClass(ring.ID, in))
		reapplyActiveTargets(ring)
		return true, nil
	})
	metrics.RecordRingOperation("add_asset_class", err)
	return ring, err
}

// UpdateAssetClass applies a partial update to one asset class. While a
// target allocation is active it owns the targets, so an explicit target
// percentage is rejected with a conflict.
func (s *Service) UpdateAssetClass(ctx context.Context, ringID, assetClassID uuid.UUID, update entities.AssetClassUpdate) (*entities.AllocationRing, error) {
	if err := s.validateAssetClassUpdate(update); err != nil {
		return nil, err
	}
	ring, err := s.mutate(ctx, ringID, "update_asset_class", func(ring *entities.AllocationRing) (bool, error) {
		idx := ring.AssetClassIndex(assetClassID)
		if idx < 0 {
			return false, apperrors.NewNotFoundError("Asset class", assetClassID.String())
		}
		if update.TargetPercentage != nil && governedByTargets(ring) {
			return false, apperrors.NewConflictError(apperrors.CodeConflict,
				"asset class targets are set by the active target allocation").
				WithDetail("field", "target_percentage")
		}
		ac := &ring.AssetClasses[idx]
		if update.Name != nil {
			ac.Name = strings.TrimSpace(*update.Name)
		}
		if update.Description != nil {
			ac.Description = *update.Description
		}
		if update.CurrentValue != nil {
			ac.CurrentValue = *update.CurrentValue
		}
		if update.TargetPercentage != nil {
			ac.TargetPercentage = *update.TargetPercentage
		}
		if update.GeographicBreakdown != nil {
			ac.GeographicBreakdown = append([]entities.GeographicAllocation(nil), (*update.GeographicBreakdown)...)
		}
		if update.TaxCharacteristics != nil {
			ac.TaxCharacteristics = *update.TaxCharacteristics
		}
		if update.Performance != nil {
			ac.Performance = *update.Performance
		}
		if update.TopHoldings != nil {
			ac.TopHoldings = append([]entities.TopHolding(nil), (*update.TopHoldings)...)
		}
		// a value change moves the split of a shared category target
		reapplyActiveTargets(ring)
		return true, nil
	})
	metrics.RecordRingOperation("update_asset_class", err)
	return ring, err
}

// RemoveAssetClass drops one asset class; the rest are re-weighted against the new total.
func (s *Service) RemoveAssetClass(ctx context.Context, ringID, assetClassID uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.mutate(ctx, ringID, "remove_asset_class", func(ring *entities.AllocationRing) (bool, error) {
		idx := ring.AssetClassIndex(assetClassID)
		if idx < 0 {
			return false, apperrors.NewNotFoundError("Asset class", assetClassID.String())
		}
		ring.AssetClasses = append(ring.AssetClasses[:idx], ring.AssetClasses[idx+1:]...)
		reapplyActiveTargets(ring)
		return true, nil
	})
	metrics.RecordRingOperation("remove_asset_class", err)
	return ring, err
}

// AddTargetAllocation stores a new target allocation. When it is marked
// active it replaces the current active one and its targets are applied.
func (s *Service) AddTargetAllocation(ctx context.Context, ringID uuid.UUID, ta entities.TargetAllocation) (*entities.AllocationRing, error) {
	if err := s.validateTargetAllocation(ta); err != nil {
		return nil, err
	}
	ring, err := s.mutate(ctx, ringID, "add_target_allocation", func(ring *entities.AllocationRing) (bool, error) {
		ta = ta.Clone()
		ta.ID = uuid.New()
		ta.CreatedAt = s.now().UTC()
		for i := range ta.Constraints {
			if ta.Constraints[i].ID == uuid.Nil {
				ta.Constraints[i].ID = uuid.New()
			}
		}
		if ta.IsActive {
			for i := range ring.TargetAllocations {
				ring.TargetAllocations[i].IsActive = false
			}
		}
		ring.TargetAllocations = append(ring.TargetAllocations, ta)
		if ta.IsActive {
			applyTargets(ring, &ring.TargetAllocations[len(ring.TargetAllocations)-1])
		}
		return true, nil
	})
	metrics.RecordRingOperation("add_target_allocation", err)
	return ring, err
}

// ActivateTargetAllocation makes the target allocation the active one and
// rewrites the asset classes' targets from it.
func (s *Service) ActivateTargetAllocation(ctx context.Context, ringID, targetID uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.mutate(ctx, ringID, "activate_target_allocation", func(ring *entities.AllocationRing) (bool, error) {
		idx := -1
		for i := range ring.TargetAllocations {
			if ring.TargetAllocations[i].ID == targetID {
				idx = i
			}
		}
		if idx < 0 {
			return false, apperrors.NewNotFoundError("Target allocation", targetID.String())
		}
		for i := range ring.TargetAllocations {
			ring.TargetAllocations[i].IsActive = i == idx
		}
		applyTargets(ring, &ring.TargetAllocations[idx])
		return true, nil
	})
	metrics.RecordRingOperation("activate_target_allocation", err)
	return ring, err
}

// RemoveTargetAllocation deletes a target allocation. Asset class targets keep
// whatever values the removed allocation gave them.
func (s *Service) RemoveTargetAllocation(ctx context.Context, ringID, targetID uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.mutate(ctx, ringID, "remove_target_allocation", func(ring *entities.AllocationRing) (bool, error) {
		for i := range ring.TargetAllocations {
			if ring.TargetAllocations[i].ID == targetID {
				ring.TargetAllocations = append(ring.TargetAllocations[:i], ring.TargetAllocations[i+1:]...)
				return true, nil
			}
		}
		return false, apperrors.NewNotFoundError("Target allocation", targetID.String())
	})
	metrics.RecordRingOperation("remove_target_allocation", err)
	return ring, err
}

func governedByTargets(ring *entities.AllocationRing) bool {
	ta := ring.ActiveTargetAllocation()
	return ta != nil && len(ta.Targets) > 0
}

// reapplyActiveTargets rewrites every asset class target from the active
// target allocation. Rings without one keep their per-class targets.
func reapplyActiveTargets(ring *entities.AllocationRing) {
	if governedByTargets(ring) {
		applyTargets(ring, ring.ActiveTargetAllocation())
	}
}

func applyTargets(ring *entities.AllocationRing, ta *entities.TargetAllocation) {
	targets := CategoryTargets(ring.AssetClasses, TargetMap(ta))
	for i := range ring.AssetClasses {
		ring.AssetClasses[i].TargetPercentage = targets[i]
	}
}
