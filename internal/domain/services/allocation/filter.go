package allocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// FilterRings keeps the rings that satisfy every criterion set on filter, in
// input order. An empty filter keeps everything.
func FilterRings(rings []*entities.AllocationRing, filter entities.RingFilter) []*entities.AllocationRing {
	out := make([]*entities.AllocationRing, 0, len(rings))
	for _, ring := range rings {
		if matchesFilter(ring, filter) {
			out = append(out, ring)
		}
	}
	return out
}

func matchesFilter(ring *entities.AllocationRing, f entities.RingFilter) bool {
	if ring == nil {
		return false
	}
	if f.UserID != nil && ring.UserID != *f.UserID {
		return false
	}
	if len(f.AssetClasses) > 0 && !holdsAnyCategory(ring, f.AssetClasses) {
		return false
	}
	if f.MinValue != nil && ring.PortfolioValue.LessThan(*f.MinValue) {
		return false
	}
	if f.MaxValue != nil && ring.PortfolioValue.GreaterThan(*f.MaxValue) {
		return false
	}
	if f.NeedsRebalancing != nil && ring.RebalancingNeeded != *f.NeedsRebalancing {
		return false
	}
	if f.Compliant != nil {
		compliant := ring.ComplianceStatus.Overall == entities.ComplianceCompliant
		if compliant != *f.Compliant {
			return false
		}
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" && !mentions(ring, term) {
		return false
	}
	return true
}

func holdsAnyCategory(ring *entities.AllocationRing, categories []entities.AssetClassCategory) bool {
	for _, ac := range ring.AssetClasses {
		for _, c := range categories {
			if ac.Category == c {
				return true
			}
		}
	}
	return false
}

func mentions(ring *entities.AllocationRing, term string) bool {
	if strings.Contains(strings.ToLower(ring.Name), term) {
		return true
	}
	for _, ac := range ring.AssetClasses {
		if strings.Contains(strings.ToLower(ac.Name), term) {
			return true
		}
	}
	return false
}

// FilterRings loads the candidate rings, scoped to filter.UserID when set, and
// applies the filter.
func (s *Service) FilterRings(ctx context.Context, filter entities.RingFilter) ([]*entities.AllocationRing, error) {
	if err := s.validateStruct(filter); err != nil {
		return nil, err
	}
	if filter.MinValue != nil {
		if err := checkNonNegative("min_value", *filter.MinValue); err != nil {
			return nil, err
		}
	}
	for _, c := range filter.AssetClasses {
		if err := checkCategory("asset_classes", c); err != nil {
			return nil, err
		}
	}

	var (
		rings []*entities.AllocationRing
		err   error
	)
	if filter.UserID != nil {
		rings, err = s.repo.ListByUser(ctx, *filter.UserID)
	} else {
		rings, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("filter rings: %w", err)
	}
	return FilterRings(rings, filter), nil
}
