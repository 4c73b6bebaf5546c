package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetClassInput is the caller-supplied part of an asset class.
type AssetClassInput struct {
	Category            AssetClassCategory     `json:"category" validate:"required"`
	Name                string                 `json:"name" validate:"required,max=100"`
	Description         string                 `json:"description,omitempty" validate:"max=500"`
	CurrentValue        decimal.Decimal        `json:"current_value" swaggertype:"string"`
	TargetPercentage    float64                `json:"target_percentage" validate:"gte=0,lte=100"`
	GeographicBreakdown []GeographicAllocation `json:"geographic_breakdown,omitempty" validate:"dive"`
	TaxCharacteristics  TaxCharacteristics     `json:"tax_characteristics"`
	Performance         PerformanceMetrics     `json:"performance"`
	TopHoldings         []TopHolding           `json:"top_holdings,omitempty" validate:"dive"`
}

// CreateRingRequest carries everything needed to create a ring.
type CreateRingRequest struct {
	UserID            uuid.UUID          `json:"user_id" validate:"required"`
	Name              string             `json:"name" validate:"required,max=100"`
	Description       string             `json:"description,omitempty" validate:"max=500"`
	PortfolioID       string             `json:"portfolio_id,omitempty"`
	Currency          Currency           `json:"currency,omitempty" validate:"omitempty,oneof=AUD NZD USD"`
	AssetClasses      []AssetClassInput  `json:"asset_classes" validate:"dive"`
	Configuration     *RingConfiguration `json:"configuration,omitempty"`
	TargetAllocations []TargetAllocation `json:"target_allocations,omitempty" validate:"dive"`
}

// CreateDefaultRingRequest builds a ring from the user's live portfolio.
type CreateDefaultRingRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	PortfolioID string    `json:"portfolio_id" validate:"required"`
	Name        string    `json:"name,omitempty" validate:"max=100"`
}

// RingUpdate is a partial update. Nil fields are left untouched.
type RingUpdate struct {
	Name          *string            `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description   *string            `json:"description,omitempty" validate:"omitempty,max=500"`
	PortfolioID   *string            `json:"portfolio_id,omitempty"`
	Currency      *Currency          `json:"currency,omitempty" validate:"omitempty,oneof=AUD NZD USD"`
	Configuration *RingConfiguration `json:"configuration,omitempty"`
	AssetClasses  *[]AssetClassInput `json:"asset_classes,omitempty" validate:"omitempty,dive"`
}

// AssetClassUpdate is a partial update of one asset class.
type AssetClassUpdate struct {
	Name                *string                 `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description         *string                 `json:"description,omitempty" validate:"omitempty,max=500"`
	CurrentValue        *decimal.Decimal        `json:"current_value,omitempty" swaggertype:"string"`
	TargetPercentage    *float64                `json:"target_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	GeographicBreakdown *[]GeographicAllocation `json:"geographic_breakdown,omitempty" validate:"omitempty,dive"`
	TaxCharacteristics  *TaxCharacteristics     `json:"tax_characteristics,omitempty"`
	Performance         *PerformanceMetrics     `json:"performance,omitempty"`
	TopHoldings         *[]TopHolding           `json:"top_holdings,omitempty" validate:"omitempty,dive"`
}

// RebalanceRequest asks for a rebalancing analysis. When Targets is empty the
// active target allocation, then the asset classes' own targets, are used.
type RebalanceRequest struct {
	RingID             uuid.UUID                      `json:"ring_id"`
	TargetAllocationID *uuid.UUID                     `json:"target_allocation_id,omitempty"`
	Targets            map[AssetClassCategory]float64 `json:"targets,omitempty"`
	MinTradeAmount     *decimal.Decimal               `json:"min_trade_amount,omitempty" swaggertype:"string"`
	TransactionCostBps *float64                       `json:"transaction_cost_bps,omitempty" validate:"omitempty,gte=0,lte=1000"`
}

// RingFilter selects rings. Every set criterion must match.
type RingFilter struct {
	UserID           *uuid.UUID           `json:"user_id,omitempty"`
	AssetClasses     []AssetClassCategory `json:"asset_classes,omitempty"`
	MinValue         *decimal.Decimal     `json:"min_value,omitempty" swaggertype:"string"`
	MaxValue         *decimal.Decimal     `json:"max_value,omitempty" swaggertype:"string"`
	NeedsRebalancing *bool                `json:"needs_rebalancing,omitempty"`
	Compliant        *bool                `json:"compliant,omitempty"`
	Search           string               `json:"search,omitempty"`
}
