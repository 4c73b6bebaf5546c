package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is the reporting currency of a ring.
type Currency string

const (
	CurrencyAUD Currency = "AUD"
	CurrencyNZD Currency = "NZD"
	CurrencyUSD Currency = "USD"
)

// IsValid reports whether the currency is one the allocation engine can report in.
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyAUD, CurrencyNZD, CurrencyUSD:
		return true
	}
	return false
}

// AssetClassCategory is the coarse classification of an asset class.
type AssetClassCategory string

const (
	AssetClassEquities     AssetClassCategory = "equities"
	AssetClassBonds        AssetClassCategory = "bonds"
	AssetClassETFs         AssetClassCategory = "etfs"
	AssetClassManagedFunds AssetClassCategory = "managed_funds"
	AssetClassProperty     AssetClassCategory = "property"
	AssetClassCrypto       AssetClassCategory = "crypto"
	AssetClassCommodities  AssetClassCategory = "commodities"
	AssetClassCash         AssetClassCategory = "cash"
	AssetClassAlternatives AssetClassCategory = "alternatives"
	AssetClassOther        AssetClassCategory = "other"
)

// AllAssetClassCategories returns every known category in display order.
func AllAssetClassCategories() []AssetClassCategory {
	return []AssetClassCategory{
		AssetClassEquities,
		AssetClassBonds,
		AssetClassETFs,
		AssetClassManagedFunds,
		AssetClassProperty,
		AssetClassCrypto,
		AssetClassCommodities,
		AssetClassCash,
		AssetClassAlternatives,
		AssetClassOther,
	}
}

// IsValid reports whether c is a known category.
func (c AssetClassCategory) IsValid() bool {
	for _, known := range AllAssetClassCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// RingConfiguration holds the presentation settings of a ring.
type RingConfiguration struct {
	Radius            float64                       `json:"radius" validate:"gte=0"`
	InnerRadius       float64                       `json:"inner_radius" validate:"gte=0"`
	StrokeWidth       float64                       `json:"stroke_width" validate:"gte=0"`
	ColorScheme       map[AssetClassCategory]string `json:"color_scheme,omitempty"`
	ShowLabels        bool                          `json:"show_labels"`
	ShowPercentages   bool                          `json:"show_percentages"`
	AnimationDuration int                           `json:"animation_duration" validate:"gte=0"`
	Interactive       bool                          `json:"interactive"`
}

// DefaultRingConfiguration returns the configuration applied to rings created without one.
func DefaultRingConfiguration() RingConfiguration {
	return RingConfiguration{
		Radius:            120,
		InnerRadius:       80,
		StrokeWidth:       2,
		ColorScheme:       DefaultColorScheme(),
		ShowLabels:        true,
		ShowPercentages:   true,
		AnimationDuration: 750,
		Interactive:       true,
	}
}

// DefaultColorScheme maps each category to its default segment color.
func DefaultColorScheme() map[AssetClassCategory]string {
	return map[AssetClassCategory]string{
		AssetClassEquities:     "#3B82F6",
		AssetClassBonds:        "#10B981",
		AssetClassETFs:         "#8B5CF6",
		AssetClassManagedFunds: "#F59E0B",
		AssetClassProperty:     "#EF4444",
		AssetClassCrypto:       "#F97316",
		AssetClassCommodities:  "#A16207",
		AssetClassCash:         "#6B7280",
		AssetClassAlternatives: "#EC4899",
		AssetClassOther:        "#94A3B8",
	}
}

// RingSegment is the derived arc geometry of one asset class, in degrees.
type RingSegment struct {
	StartAngle  float64 `json:"start_angle"`
	EndAngle    float64 `json:"end_angle"`
	Angle       float64 `json:"angle"`
	InnerRadius float64 `json:"inner_radius"`
	OuterRadius float64 `json:"outer_radius"`
	Color       string  `json:"color"`
}

// GeographicAllocation is one regional slice of an asset class.
type GeographicAllocation struct {
	Region             string          `json:"region" validate:"required"`
	Value              decimal.Decimal `json:"value"`
	Percentage         float64         `json:"percentage" validate:"gte=0,lte=100"`
	IsDomestic         bool            `json:"is_domestic"`
	FIFApplicable      bool            `json:"fif_applicable"`
	WithholdingTaxRate float64         `json:"withholding_tax_rate" validate:"gte=0,lte=100"`
}

// TaxCharacteristics describes how an asset class is taxed. Rates are percentages.
type TaxCharacteristics struct {
	TaxEfficiencyScore       float64 `json:"tax_efficiency_score" validate:"gte=0,lte=100"`
	DividendYield            float64 `json:"dividend_yield" validate:"gte=0,lte=100"`
	FrankingCreditRate       float64 `json:"franking_credit_rate" validate:"gte=0,lte=100"`
	TurnoverRate             float64 `json:"turnover_rate" validate:"gte=0"`
	UnrealizedGainPercentage float64 `json:"unrealized_gain_percentage"`
	HeldOverTwelveMonths     bool    `json:"held_over_twelve_months"`
	FIFApplicable            bool    `json:"fif_applicable"`
	WithholdingTaxRate       float64 `json:"withholding_tax_rate" validate:"gte=0,lte=100"`
}

// PerformanceMetrics are annualised percentage figures for an asset class.
type PerformanceMetrics struct {
	OneYearReturn   float64 `json:"one_year_return"`
	ThreeYearReturn float64 `json:"three_year_return"`
	Volatility      float64 `json:"volatility" validate:"gte=0"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	AfterTaxReturn  float64 `json:"after_tax_return"`
}

// TopHolding is one of the largest positions inside an asset class.
type TopHolding struct {
	Symbol     string          `json:"symbol" validate:"required"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Percentage float64         `json:"percentage" validate:"gte=0,lte=100"`
}

// AssetClassAllocation is one segment of a ring. CurrentPercentage, Variance and
// Segment are derived and rewritten on every recalculation.
type AssetClassAllocation struct {
	ID                  uuid.UUID              `json:"id"`
	RingID              uuid.UUID              `json:"ring_id"`
	Category            AssetClassCategory     `json:"category"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description,omitempty"`
	CurrentValue        decimal.Decimal        `json:"current_value"`
	CurrentPercentage   float64                `json:"current_percentage"`
	TargetPercentage    float64                `json:"target_percentage"`
	Variance            float64                `json:"variance"`
	GeographicBreakdown []GeographicAllocation `json:"geographic_breakdown,omitempty"`
	TaxCharacteristics  TaxCharacteristics     `json:"tax_characteristics"`
	Performance         PerformanceMetrics     `json:"performance"`
	TopHoldings         []TopHolding           `json:"top_holdings,omitempty"`
	Segment             RingSegment            `json:"segment"`
}

// AssetClassTarget is the target weight for one category inside a target allocation.
type AssetClassTarget struct {
	Category         AssetClassCategory `json:"category" validate:"required"`
	TargetPercentage float64            `json:"target_percentage" validate:"gte=0,lte=100"`
	Tolerance        float64            `json:"tolerance" validate:"gte=0,lte=100"`
	Priority         int                `json:"priority" validate:"gte=0"`
}

type TaxOptimizationPreferences struct {
	PreferFrankedDividends bool `json:"prefer_franked_dividends"`
	MinimiseFIF            bool `json:"minimise_fif"`
	HarvestLosses          bool `json:"harvest_losses"`
}

type AllocationStrategy struct {
	RiskTolerance   string                     `json:"risk_tolerance" validate:"omitempty,oneof=conservative moderate balanced growth aggressive"`
	TimeHorizon     string                     `json:"time_horizon" validate:"omitempty,oneof=short medium long"`
	TaxOptimization TaxOptimizationPreferences `json:"tax_optimization"`
}

type TriggerType string

const (
	TriggerThreshold TriggerType = "threshold"
	TriggerPeriodic  TriggerType = "periodic"
	TriggerCashFlow  TriggerType = "cash_flow"
)

type RebalancingTrigger struct {
	Type      TriggerType `json:"type" validate:"required,oneof=threshold periodic cash_flow"`
	Threshold float64     `json:"threshold" validate:"gte=0"`
	Frequency string      `json:"frequency,omitempty"`
	Enabled   bool        `json:"enabled"`
}

// Severity grades constraints and compliance issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllocationConstraint bounds the current weight of a category.
type AllocationConstraint struct {
	ID            uuid.UUID          `json:"id"`
	Category      AssetClassCategory `json:"category" validate:"required"`
	MinPercentage float64            `json:"min_percentage" validate:"gte=0,lte=100"`
	MaxPercentage float64            `json:"max_percentage" validate:"gte=0,lte=100,gtefield=MinPercentage"`
	Severity      Severity           `json:"severity" validate:"required,oneof=low medium high critical"`
	Description   string             `json:"description,omitempty"`
}

// TargetAllocation is a named set of category targets. At most one per ring is active.
type TargetAllocation struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name" validate:"required"`
	Description string                 `json:"description,omitempty"`
	IsActive    bool                   `json:"is_active"`
	Targets     []AssetClassTarget     `json:"targets" validate:"dive"`
	Strategy    AllocationStrategy     `json:"strategy"`
	Triggers    []RebalancingTrigger   `json:"triggers,omitempty" validate:"dive"`
	Constraints []AllocationConstraint `json:"constraints,omitempty" validate:"dive"`
	CreatedAt   time.Time              `json:"created_at"`
}

// TargetSum is the sum of the target percentages.
func (t *TargetAllocation) TargetSum() float64 {
	var sum float64
	for _, target := range t.Targets {
		sum += target.TargetPercentage
	}
	return sum
}

// DriftSample records how far a ring had drifted at a point in time.
type DriftSample struct {
	Timestamp        time.Time       `json:"timestamp"`
	MaxAbsVariance   float64         `json:"max_abs_variance"`
	TotalAbsVariance float64         `json:"total_abs_variance"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
}

// AllocationRing is a user's portfolio viewed as a ring of asset classes
// together with everything derived from it.
type AllocationRing struct {
	ID                     uuid.UUID               `json:"id"`
	UserID                 uuid.UUID               `json:"user_id"`
	Name                   string                  `json:"name"`
	Description            string                  `json:"description,omitempty"`
	PortfolioID            string                  `json:"portfolio_id,omitempty"`
	PortfolioValue         decimal.Decimal         `json:"portfolio_value"`
	Currency               Currency                `json:"currency"`
	AssetClasses           []AssetClassAllocation  `json:"asset_classes"`
	Configuration          RingConfiguration       `json:"configuration"`
	TargetAllocations      []TargetAllocation      `json:"target_allocations"`
	RebalancingNeeded      bool                    `json:"rebalancing_needed"`
	RebalancingSuggestions []RebalancingSuggestion `json:"rebalancing_suggestions"`
	TaxInsights            TaxInsights             `json:"tax_insights"`
	ComplianceStatus       ComplianceStatus        `json:"compliance_status"`
	DriftHistory           []DriftSample           `json:"drift_history,omitempty"`
	CreatedAt              time.Time               `json:"created_at"`
	UpdatedAt              time.Time               `json:"updated_at"`
	LastCalculatedAt       time.Time               `json:"last_calculated_at"`
}

// ActiveTargetAllocation returns the active target allocation, if any.
func (r *AllocationRing) ActiveTargetAllocation() *TargetAllocation {
	for i := range r.TargetAllocations {
		if r.TargetAllocations[i].IsActive {
			return &r.TargetAllocations[i]
		}
	}
	return nil
}

// AssetClassIndex returns the position of the asset class with the given id, or -1.
func (r *AllocationRing) AssetClassIndex(id uuid.UUID) int {
	for i := range r.AssetClasses {
		if r.AssetClasses[i].ID == id {
			return i
		}
	}
	return -1
}

// SuggestionIndex returns the position of the suggestion with the given id, or -1.
func (r *AllocationRing) SuggestionIndex(id uuid.UUID) int {
	for i := range r.RebalancingSuggestions {
		if r.RebalancingSuggestions[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can never alias repository state.
func (r *AllocationRing) Clone() *AllocationRing {
	if r == nil {
		return nil
	}
	out := *r

	if r.AssetClasses != nil {
		out.AssetClasses = make([]AssetClassAllocation, len(r.AssetClasses))
		for i, ac := range r.AssetClasses {
			out.AssetClasses[i] = ac.Clone()
		}
	}

	out.Configuration = r.Configuration
	if r.Configuration.ColorScheme != nil {
		out.Configuration.ColorScheme = make(map[AssetClassCategory]string, len(r.Configuration.ColorScheme))
		for k, v := range r.Configuration.ColorScheme {
			out.Configuration.ColorScheme[k] = v
		}
	}

	if r.TargetAllocations != nil {
		out.TargetAllocations = make([]TargetAllocation, len(r.TargetAllocations))
		for i, ta := range r.TargetAllocations {
			out.TargetAllocations[i] = ta.Clone()
		}
	}

	if r.RebalancingSuggestions != nil {
		out.RebalancingSuggestions = make([]RebalancingSuggestion, len(r.RebalancingSuggestions))
		for i, s := range r.RebalancingSuggestions {
			out.RebalancingSuggestions[i] = s.Clone()
		}
	}

	out.TaxInsights = r.TaxInsights.Clone()
	out.ComplianceStatus = r.ComplianceStatus.Clone()
	out.DriftHistory = cloneSlice(r.DriftHistory)
	return &out
}

func (a AssetClassAllocation) Clone() AssetClassAllocation {
	out := a
	out.GeographicBreakdown = cloneSlice(a.GeographicBreakdown)
	out.TopHoldings = cloneSlice(a.TopHoldings)
	return out
}

func (t TargetAllocation) Clone() TargetAllocation {
	out := t
	out.Targets = cloneSlice(t.Targets)
	out.Triggers = cloneSlice(t.Triggers)
	out.Constraints = cloneSlice(t.Constraints)
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
