package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AllocationState struct {
	AssetClassID uuid.UUID          `json:"asset_class_id"`
	Category     AssetClassCategory `json:"category"`
	Name         string             `json:"name"`
	Value        decimal.Decimal    `json:"value"`
	Percentage   float64            `json:"percentage"`
}

type RebalanceStrategy string

const (
	StrategyFullRebalance      RebalanceStrategy = "full_rebalance"
	StrategyThresholdRebalance RebalanceStrategy = "threshold_rebalance"
	StrategyCashFlowRebalance  RebalanceStrategy = "cash_flow_rebalance"
)

type RebalanceAlternative struct {
	Strategy     RebalanceStrategy `json:"strategy"`
	Description  string            `json:"description"`
	Trades       []ProposedChange  `json:"trades"`
	TradeCount   int               `json:"trade_count"`
	TotalCost    decimal.Decimal   `json:"total_cost"`
	EstimatedTax decimal.Decimal   `json:"estimated_tax"`
	CashRequired decimal.Decimal   `json:"cash_required"`
}

// RebalanceAnalysis is returned by a rebalancing analysis. A failed analysis
// carries Success=false and the reasons in Errors; it is never a Go error.
type RebalanceAnalysis struct {
	Success         bool                   `json:"success"`
	Errors          []string               `json:"errors,omitempty"`
	RingID          uuid.UUID              `json:"ring_id"`
	CurrentState    []AllocationState      `json:"current_state,omitempty"`
	ProposedState   []AllocationState      `json:"proposed_state,omitempty"`
	Trades          []ProposedChange       `json:"trades,omitempty"`
	TaxImplications []TaxImplication       `json:"tax_implications,omitempty"`
	Impact          ExpectedImpact         `json:"impact"`
	TotalCost       decimal.Decimal        `json:"total_cost"`
	EstimatedTax    decimal.Decimal        `json:"estimated_tax"`
	Alternatives    []RebalanceAlternative `json:"alternatives,omitempty"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// FailedAnalysis builds the structured failure result.
func FailedAnalysis(ringID uuid.UUID, reasons ...string) *RebalanceAnalysis {
	return &RebalanceAnalysis{
		Success:      false,
		Errors:       reasons,
		RingID:       ringID,
		TotalCost:    decimal.Zero,
		EstimatedTax: decimal.Zero,
		GeneratedAt:  time.Now().UTC(),
	}
}

type AssetClassPerformance struct {
	AssetClassID    uuid.UUID          `json:"asset_class_id"`
	Category        AssetClassCategory `json:"category"`
	Name            string             `json:"name"`
	Weight          float64            `json:"weight"`
	Return          float64            `json:"return"`
	Contribution    float64            `json:"contribution"`
	AfterTaxReturn  float64            `json:"after_tax_return"`
	BenchmarkReturn float64            `json:"benchmark_return"`
	ExcessReturn    float64            `json:"excess_return"`
}

// AttributionEffect is a Brinson-style decomposition for one category.
type AttributionEffect struct {
	Category          AssetClassCategory `json:"category"`
	PortfolioWeight   float64            `json:"portfolio_weight"`
	BenchmarkWeight   float64            `json:"benchmark_weight"`
	AllocationEffect  float64            `json:"allocation_effect"`
	SelectionEffect   float64            `json:"selection_effect"`
	InteractionEffect float64            `json:"interaction_effect"`
	TotalEffect       float64            `json:"total_effect"`
}

type BenchmarkComparison struct {
	PortfolioReturn float64 `json:"portfolio_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	ExcessReturn    float64 `json:"excess_return"`
	Outperformed    bool    `json:"outperformed"`
}

type RiskMetrics struct {
	Volatility           float64 `json:"volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	ConcentrationIndex   float64 `json:"concentration_index"`
	DiversificationRatio float64 `json:"diversification_ratio"`
	MaxDrift             float64 `json:"max_drift"`
	DriftVolatility      float64 `json:"drift_volatility"`
}

type TaxAdjustedPerformance struct {
	PreTaxReturn   float64 `json:"pre_tax_return"`
	AfterTaxReturn float64 `json:"after_tax_return"`
	TaxDrag        float64 `json:"tax_drag"`
	TaxEfficiency  float64 `json:"tax_efficiency"`
}

// AllocationPerformance is the performance analysis of a ring.
type AllocationPerformance struct {
	RingID        uuid.UUID               `json:"ring_id"`
	Currency      Currency                `json:"currency"`
	TotalValue    decimal.Decimal         `json:"total_value"`
	OverallReturn float64                 `json:"overall_return"`
	AssetClasses  []AssetClassPerformance `json:"asset_classes"`
	Attribution   []AttributionEffect     `json:"attribution"`
	Benchmark     BenchmarkComparison     `json:"benchmark"`
	Risk          RiskMetrics             `json:"risk"`
	TaxAdjusted   TaxAdjustedPerformance  `json:"tax_adjusted"`
	CalculatedAt  time.Time               `json:"calculated_at"`
}

// PortfolioHolding is one position reported by the portfolio data provider.
type PortfolioHolding struct {
	Symbol     string             `json:"symbol"`
	Name       string             `json:"name"`
	AssetClass AssetClassCategory `json:"asset_class"`
	Region     string             `json:"region"`
	IsDomestic bool               `json:"is_domestic"`
	Quantity   decimal.Decimal    `json:"quantity"`
	Price      decimal.Decimal    `json:"price"`
	Value      decimal.Decimal    `json:"value"`
}

// PortfolioSnapshot is the provider's view of a portfolio at a point in time.
type PortfolioSnapshot struct {
	PortfolioID string             `json:"portfolio_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Currency    Currency           `json:"currency"`
	TotalValue  decimal.Decimal    `json:"total_value"`
	Holdings    []PortfolioHolding `json:"holdings"`
	AsOf        time.Time          `json:"as_of"`
}

// TradeOrder is one order sent to the trade execution service.
type TradeOrder struct {
	ClientOrderID string             `json:"client_order_id"`
	RingID        uuid.UUID          `json:"ring_id"`
	PortfolioID   string             `json:"portfolio_id"`
	AssetClassID  uuid.UUID          `json:"asset_class_id"`
	Category      AssetClassCategory `json:"category"`
	Action        TradeAction        `json:"action"`
	Amount        decimal.Decimal    `json:"amount"`
	Currency      Currency           `json:"currency"`
}

// TradeFill is the execution service's answer to one order.
type TradeFill struct {
	ClientOrderID string          `json:"client_order_id"`
	AssetClassID  uuid.UUID       `json:"asset_class_id"`
	Action        TradeAction     `json:"action"`
	FilledAmount  decimal.Decimal `json:"filled_amount"`
	Fees          decimal.Decimal `json:"fees"`
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
}

// ExecutionResult reports the outcome of executing an accepted suggestion.
type ExecutionResult struct {
	Success      bool            `json:"success"`
	RingID       uuid.UUID       `json:"ring_id"`
	SuggestionID uuid.UUID       `json:"suggestion_id"`
	Fills        []TradeFill     `json:"fills"`
	Errors       []string        `json:"errors,omitempty"`
	Ring         *AllocationRing `json:"ring,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}
