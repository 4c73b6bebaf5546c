package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SuggestionType string

const (
	SuggestionDriftCorrection SuggestionType = "drift_correction"
	SuggestionTaxOptimization SuggestionType = "tax_optimization"
)

type SuggestionPriority string

const (
	SuggestionPriorityLow    SuggestionPriority = "low"
	SuggestionPriorityMedium SuggestionPriority = "medium"
	SuggestionPriorityHigh   SuggestionPriority = "high"
)

type SuggestionUrgency string

const (
	UrgencyImmediate      SuggestionUrgency = "immediate"
	UrgencySoon           SuggestionUrgency = "soon"
	UrgencyWithinQuarter  SuggestionUrgency = "within_quarter"
	UrgencyWhenConvenient SuggestionUrgency = "when_convenient"
)

type SuggestionStatus string

const (
	SuggestionStatusPending     SuggestionStatus = "pending"
	SuggestionStatusAccepted    SuggestionStatus = "accepted"
	SuggestionStatusRejected    SuggestionStatus = "rejected"
	SuggestionStatusImplemented SuggestionStatus = "implemented"
)

// IsResolved reports whether the suggestion can no longer change status.
func (s SuggestionStatus) IsResolved() bool {
	return s == SuggestionStatusRejected || s == SuggestionStatusImplemented
}

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// ProposedChange moves one asset class from its current weight to a proposed one.
type ProposedChange struct {
	AssetClassID   uuid.UUID          `json:"asset_class_id"`
	Category       AssetClassCategory `json:"category"`
	Name           string             `json:"name"`
	FromPercentage float64            `json:"from_percentage"`
	ToPercentage   float64            `json:"to_percentage"`
	Action         TradeAction        `json:"action"`
	Amount         decimal.Decimal    `json:"amount"`
	EstimatedCost  decimal.Decimal    `json:"estimated_cost"`
	TaxImpact      decimal.Decimal    `json:"tax_impact"`
}

// ExpectedImpact is the estimated effect of applying a set of changes.
// Return and risk deltas are percentage points.
type ExpectedImpact struct {
	ReturnDelta        float64         `json:"return_delta"`
	RiskDelta          float64         `json:"risk_delta"`
	TaxEfficiencyDelta float64         `json:"tax_efficiency_delta"`
	Cost               decimal.Decimal `json:"cost"`
}

type TaxImplication struct {
	Jurisdiction string          `json:"jurisdiction"`
	Description  string          `json:"description"`
	EstimatedTax decimal.Decimal `json:"estimated_tax"`
}

// RebalancingSuggestion is a derived recommendation. Its ID is stable across
// recalculations so that the user's decision on it survives.
type RebalancingSuggestion struct {
	ID                  uuid.UUID          `json:"id"`
	RingID              uuid.UUID          `json:"ring_id"`
	Type                SuggestionType     `json:"type"`
	Priority            SuggestionPriority `json:"priority"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	ProposedChanges     []ProposedChange   `json:"proposed_changes"`
	ExpectedImpact      ExpectedImpact     `json:"expected_impact"`
	TaxImplications     []TaxImplication   `json:"tax_implications"`
	ImplementationSteps []string           `json:"implementation_steps"`
	Urgency             SuggestionUrgency  `json:"urgency"`
	Status              SuggestionStatus   `json:"status"`
	ResolvedAt          *time.Time         `json:"resolved_at,omitempty"`
}

func (s RebalancingSuggestion) Clone() RebalancingSuggestion {
	out := s
	out.ProposedChanges = cloneSlice(s.ProposedChanges)
	out.TaxImplications = cloneSlice(s.TaxImplications)
	out.ImplementationSteps = cloneSlice(s.ImplementationSteps)
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

type FrankingInsight struct {
	EstimatedFrankingCredits decimal.Decimal `json:"estimated_franking_credits"`
	FrankedIncomeShare       float64         `json:"franked_income_share"`
}

type FIFInsight struct {
	OffshoreValue    decimal.Decimal `json:"offshore_value"`
	Threshold        decimal.Decimal `json:"threshold"`
	ExceedsThreshold bool            `json:"exceeds_threshold"`
}

// TaxInsights summarises the tax position of a ring. Percentages throughout.
type TaxInsights struct {
	Jurisdiction         string           `json:"jurisdiction"`
	OverallTaxEfficiency float64          `json:"overall_tax_efficiency"`
	EstimatedTaxDrag     float64          `json:"estimated_tax_drag"`
	Franking             *FrankingInsight `json:"franking,omitempty"`
	FIF                  *FIFInsight      `json:"fif,omitempty"`
	Recommendations      []string         `json:"recommendations"`
}

func (t TaxInsights) Clone() TaxInsights {
	out := t
	if t.Franking != nil {
		f := *t.Franking
		out.Franking = &f
	}
	if t.FIF != nil {
		f := *t.FIF
		out.FIF = &f
	}
	out.Recommendations = cloneSlice(t.Recommendations)
	return out
}

type ComplianceLevel string

const (
	ComplianceCompliant    ComplianceLevel = "compliant"
	ComplianceMinorIssues  ComplianceLevel = "minor_issues"
	ComplianceMajorIssues  ComplianceLevel = "major_issues"
	ComplianceNonCompliant ComplianceLevel = "non_compliant"
)

type ConstraintCompliance struct {
	ConstraintID      uuid.UUID          `json:"constraint_id"`
	Category          AssetClassCategory `json:"category"`
	CurrentPercentage float64            `json:"current_percentage"`
	MinPercentage     float64            `json:"min_percentage"`
	MaxPercentage     float64            `json:"max_percentage"`
	Severity          Severity           `json:"severity"`
	Compliant         bool               `json:"compliant"`
}

type TaxChecklistStatus string

const (
	TaxChecklistOK            TaxChecklistStatus = "ok"
	TaxChecklistAttention     TaxChecklistStatus = "attention"
	TaxChecklistNotApplicable TaxChecklistStatus = "not_applicable"
)

type TaxComplianceItem struct {
	Name         string             `json:"name"`
	Jurisdiction string             `json:"jurisdiction"`
	Status       TaxChecklistStatus `json:"status"`
	Note         string             `json:"note,omitempty"`
}

type ComplianceIssue struct {
	Severity Severity           `json:"severity"`
	Category AssetClassCategory `json:"category,omitempty"`
	Message  string             `json:"message"`
}

// ComplianceStatus is the result of checking a ring against its active
// constraints and the tax checklist.
type ComplianceStatus struct {
	Overall      ComplianceLevel        `json:"overall"`
	Constraints  []ConstraintCompliance `json:"constraints"`
	TaxChecklist []TaxComplianceItem    `json:"tax_checklist"`
	Issues       []ComplianceIssue      `json:"issues"`
	Warnings     []string               `json:"warnings"`
	LastChecked  time.Time              `json:"last_checked"`
}

func (c ComplianceStatus) Clone() ComplianceStatus {
	out := c
	out.Constraints = cloneSlice(c.Constraints)
	out.TaxChecklist = cloneSlice(c.TaxChecklist)
	out.Issues = cloneSlice(c.Issues)
	out.Warnings = cloneSlice(c.Warnings)
	return out
}
