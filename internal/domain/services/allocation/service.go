package allocation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/domain/repositories"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/logger"
	"github.com/stackmotive/stackmotive/pkg/metrics"
	"github.com/stackmotive/stackmotive/pkg/pagination"
)

// PortfolioDataProvider supplies live portfolio valuations.
type PortfolioDataProvider interface {
	GetPortfolio(ctx context.Context, userID uuid.UUID, portfolioID string) (*entities.PortfolioSnapshot, error)
}

// TradeExecutor submits orders and reports a fill per order.
type TradeExecutor interface {
	ExecuteTrades(ctx context.Context, orders []entities.TradeOrder) ([]entities.TradeFill, error)
}

// Config holds service-level settings.
type Config struct {
	Engine       EngineConfig
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		Engine:       DefaultEngineConfig(),
		HistoryLimit: 90,
	}
}

// Service owns the allocation rings of all users. Every mutation runs under
// the ring's lock and finishes with a full recalculation before it is saved.
type Service struct {
	repo     repositories.RingRepository
	provider PortfolioDataProvider
	executor TradeExecutor
	notifier *NotificationManager
	engine   *Engine
	validate *validator.Validate
	locks    *ringLocks
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new allocation service. provider, executor and
// notifier may be nil; the operations that need them then fail.
func NewService(
	repo repositories.RingRepository,
	provider PortfolioDataProvider,
	executor TradeExecutor,
	notifier *NotificationManager,
	cfg Config,
	logger *logger.Logger,
) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Service{
		repo:     repo,
		provider: provider,
		executor: executor,
		notifier: notifier,
		engine:   NewEngine(cfg.Engine),
		validate: newValidator(),
		locks:    newRingLocks(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Engine exposes the recalculation engine, mainly for callers that filter or
// analyse snapshots without going through the repository.
func (s *Service) Engine() *Engine { return s.engine }

// CreateRing validates the request, builds the ring and runs the full pipeline.
func (s *Service) CreateRing(ctx context.Context, req entities.CreateRingRequest) (*entities.AllocationRing, error) {
	ring, err := s.createRing(ctx, req)
	metrics.RecordRingOperation("create", err)
	return ring, err
}

func (s *Service) createRing(ctx context.Context, req entities.CreateRingRequest) (*entities.AllocationRing, error) {
	for _, in := range req.AssetClasses {
		if err := s.validateAssetClassInput(in); err != nil {
			return nil, err
		}
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkNotBlank("name", req.Name); err != nil {
		return nil, err
	}
	for _, ta := range req.TargetAllocations {
		if err := s.validateTargetAllocation(ta); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	ring := &entities.AllocationRing{
		ID:                     uuid.New(),
		UserID:                 req.UserID,
		Name:                   strings.TrimSpace(req.Name),
		Description:            req.Description,
		PortfolioID:            req.PortfolioID,
		Currency:               req.Currency,
		AssetClasses:           make([]entities.AssetClassAllocation, 0, len(req.AssetClasses)),
		Configuration:          entities.DefaultRingConfiguration(),
		TargetAllocations:      make([]entities.TargetAllocation, 0, len(req.TargetAllocations)),
		RebalancingSuggestions: make([]entities.RebalancingSuggestion, 0),
		DriftHistory:           make([]entities.DriftSample, 0),
		CreatedAt:              now,
	}
	if ring.Currency == "" {
		ring.Currency = entities.CurrencyAUD
	}
	if req.Configuration != nil {
		ring.Configuration = *req.Configuration
	}
	for _, in := range req.AssetClasses {
		ring.AssetClasses = append(ring.AssetClasses, newAssetClass(ring.ID, in))
	}

	active := false
	for _, ta := range req.TargetAllocations {
		ta.ID = uuid.New()
		ta.CreatedAt = now
		ta = ta.Clone()
		for i := range ta.Constraints {
			if ta.Constraints[i].ID == uuid.Nil {
				ta.Constraints[i].ID = uuid.New()
			}
		}
		if ta.IsActive {
			if active {
				ta.IsActive = false
			}
			active = true
		}
		ring.TargetAllocations = append(ring.TargetAllocations, ta)
	}
	reapplyActiveTargets(ring)

	s.recalculate(ring, now)

	if err := s.repo.Save(ctx, ring); err != nil {
		s.logger.Errorw("Failed to save ring", "error", err, "ring_id", ring.ID.String())
		return nil, fmt.Errorf("save ring: %w", err)
	}
	if s.notifier != nil {
		s.notifier.NotifyTransitions(ctx, nil, ring)
	}

	s.logger.Infow("Allocation ring created",
		"ring_id", ring.ID.String(),
		"user_id", ring.UserID.String(),
		"asset_classes", len(ring.AssetClasses),
		"portfolio_value", ring.PortfolioValue.String())
	return ring.Clone(), nil
}

// GetRing returns a snapshot of the ring.
func (s *Service) GetRing(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	ring, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}
	return ring, nil
}

// ListRings returns one page of the rings owned by userID, oldest first.
func (s *Service) ListRings(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]*entities.AllocationRing, *pagination.PageInfo, error) {
	rings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rings: %w", err)
	}
	sort.SliceStable(rings, func(i, j int) bool {
		return rings[i].CreatedAt.Before(rings[j].CreatedAt)
	})
	items, info := pagination.Slice(rings, page)
	return items, info, nil
}

// UpdateRing merges a partial update. Name, description and portfolio link
// changes only bump UpdatedAt; anything feeding derived fields re-runs the pipeline.
func (s *Service) UpdateRing(ctx context.Context, id uuid.UUID, update entities.RingUpdate) (*entities.AllocationRing, error) {
	if update.AssetClasses != nil {
		for _, in := range *update.AssetClasses {
			if err := s.validateAssetClassInput(in); err != nil {
				return nil, err
			}
		}
	}
	if err := s.validateStruct(update); err != nil {
		return nil, err
	}
	if update.Name != nil {
		if err := checkNotBlank("name", *update.Name); err != nil {
			return nil, err
		}
	}

	ring, err := s.mutate(ctx, id, "update", func(ring *entities.AllocationRing) (bool, error) {
		if update.Name != nil {
			ring.Name = strings.TrimSpace(*update.Name)
		}
		if update.Description != nil {
			ring.Description = *update.Description
		}
		if update.PortfolioID != nil {
			ring.PortfolioID = *update.PortfolioID
		}
		recalc := false
		if update.Currency != nil && *update.Currency != ring.Currency {
			ring.Currency = *update.Currency
			recalc = true
		}
		if update.Configuration != nil {
			ring.Configuration = *update.Configuration
			recalc = true
		}
		if update.AssetClasses != nil {
			ring.AssetClasses = make([]entities.AssetClassAllocation, 0, len(*update.AssetClasses))
			for _, in := range *update.AssetClasses {
				ring.AssetClasses = append(ring.AssetClasses, newAssetClass(ring.ID, in))
			}
			reapplyActiveTargets(ring)
			recalc = true
		}
		return recalc, nil
	})
	metrics.RecordRingOperation("update", err)
	return ring, err
}

// DeleteRing removes the ring.
func (s *Service) DeleteRing(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.repo.Delete(ctx, id)
	metrics.RecordRingOperation("delete", err)
	if err != nil {
		return s.lookupError(err, id)
	}
	s.logger.Infow("Allocation ring deleted", "ring_id", id.String())
	return nil
}

// mutate loads the ring under its lock, applies fn and saves the result. fn
// reports whether derived fields must be recomputed.
func (s *Service) mutate(
	ctx context.Context,
	id uuid.UUID,
	op string,
	fn func(ring *entities.AllocationRing) (bool, error),
) (*entities.AllocationRing, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	ring, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}
	before := ring.Clone()

	recalc, err := fn(ring)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if recalc {
		s.recalculate(ring, now)
	} else {
		ring.UpdatedAt = now
	}

	log := s.logger.ForRing(id.String(), ring.UserID.String())
	if err := s.repo.Save(ctx, ring); err != nil {
		log.CtxError(ctx, "Failed to save ring", "error", err, "operation", op)
		return nil, fmt.Errorf("save ring: %w", err)
	}

	log.CtxDebug(ctx, "Allocation ring mutated",
		"operation", op,
		"rebalancing_needed", ring.RebalancingNeeded)

	if s.notifier != nil {
		s.notifier.NotifyTransitions(ctx, before, ring)
	}
	return ring.Clone(), nil
}

// recalculate runs the pipeline and stamps the ring.
func (s *Service) recalculate(ring *entities.AllocationRing, now time.Time) {
	known := make(map[uuid.UUID]struct{}, len(ring.RebalancingSuggestions))
	for _, sg := range ring.RebalancingSuggestions {
		known[sg.ID] = struct{}{}
	}

	s.engine.Recalculate(ring)

	ring.UpdatedAt = now
	ring.LastCalculatedAt = now
	ring.ComplianceStatus.LastChecked = now

	for _, sg := range ring.RebalancingSuggestions {
		if _, ok := known[sg.ID]; !ok {
			metrics.RecordSuggestion(string(sg.Type), string(sg.Priority))
		}
	}
}

func (s *Service) lookupError(err error, id uuid.UUID) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFoundError("Ring", id.String())
	}
	return fmt.Errorf("load ring %s: %w", id, err)
}

func newAssetClass(ringID uuid.UUID, in entities.AssetClassInput) entities.AssetClassAllocation {
	return entities.AssetClassAllocation{
		ID:                  uuid.New(),
		RingID:              ringID,
		Category:            in.Category,
		Name:                strings.TrimSpace(in.Name),
		Description:         in.Description,
		CurrentValue:        in.CurrentValue,
		TargetPercentage:    in.TargetPercentage,
		GeographicBreakdown: append([]entities.GeographicAllocation(nil), in.GeographicBreakdown...),
		TaxCharacteristics:  in.TaxCharacteristics,
		Performance:         in.Performance,
		TopHoldings:         append([]entities.TopHolding(nil), in.TopHoldings...),
	}
}
