package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/pagination"
	"github.com/stackmotive/stackmotive/pkg/tracing"
)

// RingService is the allocation behaviour the HTTP layer needs
type RingService interface {
	CreateRing(ctx context.Context, req entities.CreateRingRequest) (*entities.AllocationRing, error)
	CreateDefaultRing(ctx context.Context, req entities.CreateDefaultRingRequest) (*entities.AllocationRing, error)
	GetRing(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error)
	ListRings(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]*entities.AllocationRing, *pagination.PageInfo, error)
	UpdateRing(ctx context.Context, id uuid.UUID, update entities.RingUpdate) (*entities.AllocationRing, error)
	DeleteRing(ctx context.Context, id uuid.UUID) error
	AddAssetClass(ctx context.Context, ringID uuid.UUID, in entities.AssetClassInput) (*entities.AllocationRing, error)
	UpdateAssetClass(ctx context.Context, ringID, assetClassID uuid.UUID, update entities.AssetClassUpdate) (*entities.AllocationRing, error)
	RemoveAssetClass(ctx context.Context, ringID, assetClassID uuid.UUID) (*entities.AllocationRing, error)
	AddTargetAllocation(ctx context.Context, ringID uuid.UUID, ta entities.TargetAllocation) (*entities.AllocationRing, error)
	ActivateTargetAllocation(ctx context.Context, ringID, targetID uuid.UUID) (*entities.AllocationRing, error)
	RemoveTargetAllocation(ctx context.Context, ringID, targetID uuid.UUID) (*entities.AllocationRing, error)
	AnalyzeRebalancing(ctx context.Context, req entities.RebalanceRequest) *entities.RebalanceAnalysis
	GetPerformanceAnalysis(ctx context.Context, id uuid.UUID) (*entities.AllocationPerformance, error)
	FilterRings(ctx context.Context, filter entities.RingFilter) ([]*entities.AllocationRing, error)
	AcceptSuggestion(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.AllocationRing, error)
	RejectSuggestion(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.AllocationRing, error)
	ExecuteRebalancing(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.ExecutionResult, error)
	RefreshValuations(ctx context.Context, ringID uuid.UUID) (*entities.AllocationRing, error)
}

// RingHandlers serves the allocation ring API
type RingHandlers struct {
	service RingService
	logger  *zap.Logger
}

// NewRingHandlers creates new ring handlers
func NewRingHandlers(service RingService, logger *zap.Logger) *RingHandlers {
	return &RingHandlers{
		service: service,
		logger:  logger,
	}
}

// authorizeRing resolves the caller and checks the ring in the :id parameter
// belongs to them. Rings of other users are reported as missing.
func (h *RingHandlers) authorizeRing(c *gin.Context) (uuid.UUID, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return uuid.Nil, false
	}

	ringID, ok := parseUUIDParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}

	ring, err := h.service.GetRing(c.Request.Context(), ringID)
	if err != nil {
		respondAppError(c, err)
		return uuid.Nil, false
	}
	if ring.UserID != userID {
		respondAppError(c, apperrors.NewNotFoundError("Ring", ringID.String()))
		return uuid.Nil, false
	}
	tracing.AddSpanAttributes(c,
		attribute.Int("ring.asset_classes", len(ring.AssetClasses)),
		attribute.Bool("ring.rebalancing_needed", ring.RebalancingNeeded),
	)
	return ringID, true
}

// bindJSON binds the request body, responding 400 on malformed input
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// CreateRing creates an allocation ring
// @Summary Create an allocation ring
// @Tags rings
// @Accept json
// @Produce json
// @Param request body entities.CreateRingRequest true "Ring definition"
// @Success 201 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings [post]
func (h *RingHandlers) CreateRing(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	var req entities.CreateRingRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = userID

	ring, err := h.service.CreateRing(c.Request.Context(), req)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ring)
}

// CreateDefaultRing creates a ring from the caller's linked portfolio
// @Summary Create a ring from a linked portfolio
// @Tags rings
// @Accept json
// @Produce json
// @Param request body entities.CreateDefaultRingRequest true "Portfolio to seed from"
// @Success 201 {object} entities.AllocationRing
// @Failure 404 {object} entities.ErrorResponse
// @Failure 502 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/default [post]
func (h *RingHandlers) CreateDefaultRing(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	var req entities.CreateDefaultRingRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = userID

	ring, err := h.service.CreateDefaultRing(c.Request.Context(), req)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ring)
}

// ListRings returns a page of the caller's rings, oldest first
// @Summary List the caller's rings
// @Tags rings
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} entities.RingListResponse
// @Security UserID
// @Router /rings [get]
func (h *RingHandlers) ListRings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	var page pagination.Params
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBadRequest(c, "Invalid pagination parameters", map[string]interface{}{"error": err.Error()})
		return
	}

	rings, info, err := h.service.ListRings(c.Request.Context(), userID, page)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, entities.RingListResponse{Rings: rings, Pagination: info})
}

// GetRing returns one ring
// @Summary Get a ring
// @Tags rings
// @Produce json
// @Param id path string true "Ring ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id} [get]
func (h *RingHandlers) GetRing(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	ring, err := h.service.GetRing(c.Request.Context(), ringID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// UpdateRing applies a partial update
// @Summary Update a ring
// @Tags rings
// @Accept json
// @Produce json
// @Param id path string true "Ring ID"
// @Param request body entities.RingUpdate true "Fields to change"
// @Success 200 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id} [patch]
func (h *RingHandlers) UpdateRing(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	var update entities.RingUpdate
	if !bindJSON(c, &update) {
		return
	}

	ring, err := h.service.UpdateRing(c.Request.Context(), ringID, update)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// DeleteRing removes a ring
// @Summary Delete a ring
// @Tags rings
// @Param id path string true "Ring ID"
// @Success 204
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id} [delete]
func (h *RingHandlers) DeleteRing(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	if err := h.service.DeleteRing(c.Request.Context(), ringID); err != nil {
		respondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddAssetClass adds an asset class to a ring
// @Summary Add an asset class
// @Tags asset-classes
// @Accept json
// @Produce json
// @Param id path string true "Ring ID"
// @Param request body entities.AssetClassInput true "Asset class"
// @Success 201 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/asset-classes [post]
func (h *RingHandlers) AddAssetClass(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	var in entities.AssetClassInput
	if !bindJSON(c, &in) {
		return
	}

	ring, err := h.service.AddAssetClass(c.Request.Context(), ringID, in)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ring)
}

// UpdateAssetClass applies a partial update to one asset class
// @Summary Update an asset class
// @Tags asset-classes
// @Accept json
// @Produce json
// @Param id path string true "Ring ID"
// @Param assetClassId path string true "Asset class ID"
// @Param request body entities.AssetClassUpdate true "Fields to change"
// @Success 200 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/asset-classes/{assetClassId} [patch]
func (h *RingHandlers) UpdateAssetClass(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	assetClassID, ok := parseUUIDParam(c, "assetClassId")
	if !ok {
		return
	}

	var update entities.AssetClassUpdate
	if !bindJSON(c, &update) {
		return
	}

	ring, err := h.service.UpdateAssetClass(c.Request.Context(), ringID, assetClassID, update)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// RemoveAssetClass removes one asset class
// @Summary Remove an asset class
// @Tags asset-classes
// @Produce json
// @Param id path string true "Ring ID"
// @Param assetClassId path string true "Asset class ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/asset-classes/{assetClassId} [delete]
func (h *RingHandlers) RemoveAssetClass(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	assetClassID, ok := parseUUIDParam(c, "assetClassId")
	if !ok {
		return
	}

	ring, err := h.service.RemoveAssetClass(c.Request.Context(), ringID, assetClassID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// AddTargetAllocation adds a target allocation
// @Summary Add a target allocation
// @Tags targets
// @Accept json
// @Produce json
// @Param id path string true "Ring ID"
// @Param request body entities.TargetAllocation true "Target allocation"
// @Success 201 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/targets [post]
func (h *RingHandlers) AddTargetAllocation(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	var ta entities.TargetAllocation
	if !bindJSON(c, &ta) {
		return
	}

	ring, err := h.service.AddTargetAllocation(c.Request.Context(), ringID, ta)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ring)
}

// ActivateTargetAllocation makes a target allocation the active one
// @Summary Activate a target allocation
// @Tags targets
// @Produce json
// @Param id path string true "Ring ID"
// @Param targetId path string true "Target allocation ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/targets/{targetId}/activate [post]
func (h *RingHandlers) ActivateTargetAllocation(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	targetID, ok := parseUUIDParam(c, "targetId")
	if !ok {
		return
	}

	ring, err := h.service.ActivateTargetAllocation(c.Request.Context(), ringID, targetID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// RemoveTargetAllocation removes a target allocation
// @Summary Remove a target allocation
// @Tags targets
// @Produce json
// @Param id path string true "Ring ID"
// @Param targetId path string true "Target allocation ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/targets/{targetId} [delete]
func (h *RingHandlers) RemoveTargetAllocation(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	targetID, ok := parseUUIDParam(c, "targetId")
	if !ok {
		return
	}

	ring, err := h.service.RemoveTargetAllocation(c.Request.Context(), ringID, targetID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// AnalyzeRebalancing runs a rebalancing analysis. The body is optional; an
// analysis that cannot be produced is returned with 422.
// @Summary Analyse rebalancing options
// @Tags rebalancing
// @Accept json
// @Produce json
// @Param id path string true "Ring ID"
// @Param request body entities.RebalanceRequest false "Ad-hoc targets and overrides"
// @Success 200 {object} entities.RebalanceAnalysis
// @Failure 422 {object} entities.RebalanceAnalysis
// @Security UserID
// @Router /rings/{id}/analyze [post]
func (h *RingHandlers) AnalyzeRebalancing(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	var req entities.RebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}
	req.RingID = ringID

	analysis := h.service.AnalyzeRebalancing(c.Request.Context(), req)
	if !analysis.Success {
		h.logger.Info("Rebalancing analysis unavailable",
			zap.String("ring_id", ringID.String()),
			zap.Strings("errors", analysis.Errors))
		c.JSON(http.StatusUnprocessableEntity, analysis)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// GetPerformance returns the performance analysis of a ring
// @Summary Performance analysis
// @Tags rebalancing
// @Produce json
// @Param id path string true "Ring ID"
// @Success 200 {object} entities.AllocationPerformance
// @Failure 404 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/performance [get]
func (h *RingHandlers) GetPerformance(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	perf, err := h.service.GetPerformanceAnalysis(c.Request.Context(), ringID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

// FilterRings selects the caller's rings matching every given criterion
// @Summary Filter the caller's rings
// @Tags rings
// @Accept json
// @Produce json
// @Param request body entities.RingFilter true "Criteria"
// @Success 200 {array} entities.AllocationRing
// @Security UserID
// @Router /rings/filter [post]
func (h *RingHandlers) FilterRings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "User not authenticated")
		return
	}

	var filter entities.RingFilter
	if err := c.ShouldBindJSON(&filter); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}
	filter.UserID = &userID

	rings, err := h.service.FilterRings(c.Request.Context(), filter)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, rings)
}

// AcceptSuggestion marks a suggestion accepted
// @Summary Accept a suggestion
// @Tags rebalancing
// @Produce json
// @Param id path string true "Ring ID"
// @Param suggestionId path string true "Suggestion ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 409 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/suggestions/{suggestionId}/accept [post]
func (h *RingHandlers) AcceptSuggestion(c *gin.Context) {
	h.resolveSuggestion(c, h.service.AcceptSuggestion)
}

// RejectSuggestion marks a suggestion rejected
// @Summary Reject a suggestion
// @Tags rebalancing
// @Produce json
// @Param id path string true "Ring ID"
// @Param suggestionId path string true "Suggestion ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 409 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/suggestions/{suggestionId}/reject [post]
func (h *RingHandlers) RejectSuggestion(c *gin.Context) {
	h.resolveSuggestion(c, h.service.RejectSuggestion)
}

func (h *RingHandlers) resolveSuggestion(c *gin.Context, op func(ctx context.Context, ringID, suggestionID uuid.UUID) (*entities.AllocationRing, error)) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	suggestionID, ok := parseUUIDParam(c, "suggestionId")
	if !ok {
		return
	}

	ring, err := op(c.Request.Context(), ringID, suggestionID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}

// ExecuteSuggestion sends an accepted suggestion's trades for execution
// @Summary Execute an accepted suggestion
// @Tags rebalancing
// @Produce json
// @Param id path string true "Ring ID"
// @Param suggestionId path string true "Suggestion ID"
// @Success 200 {object} entities.ExecutionResult
// @Failure 409 {object} entities.ErrorResponse
// @Failure 502 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/suggestions/{suggestionId}/execute [post]
func (h *RingHandlers) ExecuteSuggestion(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}
	suggestionID, ok := parseUUIDParam(c, "suggestionId")
	if !ok {
		return
	}

	result, err := h.service.ExecuteRebalancing(c.Request.Context(), ringID, suggestionID)
	if err != nil {
		h.logger.Warn("Rebalancing execution failed",
			zap.String("ring_id", ringID.String()),
			zap.String("suggestion_id", suggestionID.String()),
			zap.Error(err))
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshValuations pulls current holdings from the portfolio provider
// @Summary Refresh valuations from the portfolio provider
// @Tags rebalancing
// @Produce json
// @Param id path string true "Ring ID"
// @Success 200 {object} entities.AllocationRing
// @Failure 400 {object} entities.ErrorResponse
// @Failure 502 {object} entities.ErrorResponse
// @Security UserID
// @Router /rings/{id}/refresh [post]
func (h *RingHandlers) RefreshValuations(c *gin.Context) {
	ringID, ok := h.authorizeRing(c)
	if !ok {
		return
	}

	ring, err := h.service.RefreshValuations(c.Request.Context(), ringID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ring)
}
