package allocation

import (
	"fmt"
	"math"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// majorIssueCount is the number of issues at which a ring has major issues
// regardless of their severity.
const majorIssueCount = 3

func (e *Engine) evaluateCompliance(ring *entities.AllocationRing) entities.ComplianceStatus {
	status := entities.ComplianceStatus{
		Constraints:  make([]entities.ConstraintCompliance, 0),
		TaxChecklist: make([]entities.TaxComplianceItem, 0),
		Issues:       make([]entities.ComplianceIssue, 0),
		Warnings:     make([]string, 0),
	}

	byCategory := categoryWeights(ring.AssetClasses)

	if active := ring.ActiveTargetAllocation(); active != nil {
		for _, c := range active.Constraints {
			current := byCategory[c.Category]
			ok := current >= c.MinPercentage && current <= c.MaxPercentage
			status.Constraints = append(status.Constraints, entities.ConstraintCompliance{
				ConstraintID:      c.ID,
				Category:          c.Category,
				CurrentPercentage: current,
				MinPercentage:     c.MinPercentage,
				MaxPercentage:     c.MaxPercentage,
				Severity:          c.Severity,
				Compliant:         ok,
			})
			if ok {
				continue
			}
			msg := fmt.Sprintf("%s at %s is above the maximum of %s", c.Category, formatPercent(current), formatPercent(c.MaxPercentage))
			if current < c.MinPercentage {
				msg = fmt.Sprintf("%s at %s is below the minimum of %s", c.Category, formatPercent(current), formatPercent(c.MinPercentage))
			}
			status.Issues = append(status.Issues, entities.ComplianceIssue{
				Severity: c.Severity,
				Category: c.Category,
				Message:  msg,
			})
		}

		if sum := active.TargetSum(); len(active.Targets) > 0 && math.Abs(sum-100) > TargetSumTolerance {
			status.Issues = append(status.Issues, entities.ComplianceIssue{
				Severity: entities.SeverityMedium,
				Message:  fmt.Sprintf("Active target allocation %q sums to %s", active.Name, formatPercent(sum)),
			})
		}
	}

	if len(ring.AssetClasses) > 0 {
		sum := 0.0
		for _, ac := range ring.AssetClasses {
			sum += ac.TargetPercentage
		}
		if math.Abs(sum-100) > TargetSumTolerance {
			status.Warnings = append(status.Warnings, fmt.Sprintf("Asset class targets sum to %s", formatPercent(sum)))
		}
	}

	status.TaxChecklist = taxChecklist(ring)
	for _, item := range status.TaxChecklist {
		if item.Status == entities.TaxChecklistAttention {
			status.Warnings = append(status.Warnings, fmt.Sprintf("%s: %s", item.Name, item.Note))
		}
	}

	status.Overall = overallCompliance(status.Issues, status.Warnings)
	return status
}

func overallCompliance(issues []entities.ComplianceIssue, warnings []string) entities.ComplianceLevel {
	hasHigh := false
	for _, issue := range issues {
		switch issue.Severity {
		case entities.SeverityCritical:
			return entities.ComplianceNonCompliant
		case entities.SeverityHigh:
			hasHigh = true
		}
	}
	switch {
	case hasHigh || len(issues) >= majorIssueCount:
		return entities.ComplianceMajorIssues
	case len(issues) > 0 || len(warnings) > 0:
		return entities.ComplianceMinorIssues
	default:
		return entities.ComplianceCompliant
	}
}

func categoryWeights(classes []entities.AssetClassAllocation) map[entities.AssetClassCategory]float64 {
	out := make(map[entities.AssetClassCategory]float64, len(classes))
	for _, ac := range classes {
		out[ac.Category] += ac.CurrentPercentage
	}
	return out
}

func taxChecklist(ring *entities.AllocationRing) []entities.TaxComplianceItem {
	jurisdiction := JurisdictionFor(ring.Currency)
	items := make([]entities.TaxComplianceItem, 0, 3)

	withholding := 0
	for _, ac := range ring.AssetClasses {
		if ac.CurrentPercentage > 0 && ac.TaxCharacteristics.WithholdingTaxRate > 0 {
			withholding++
		}
	}
	foreignTax := entities.TaxComplianceItem{
		Name:         "Foreign tax credits",
		Jurisdiction: jurisdiction,
		Status:       entities.TaxChecklistNotApplicable,
	}
	if withholding > 0 {
		foreignTax.Status = entities.TaxChecklistAttention
		foreignTax.Note = fmt.Sprintf("%d asset class(es) suffer foreign withholding tax; keep records to claim the offset", withholding)
	}

	switch jurisdiction {
	case JurisdictionAU:
		undiscounted := 0
		for _, ac := range ring.AssetClasses {
			if ac.CurrentPercentage > 0 && ac.TaxCharacteristics.UnrealizedGainPercentage > 0 && !ac.TaxCharacteristics.HeldOverTwelveMonths {
				undiscounted++
			}
		}
		cgt := entities.TaxComplianceItem{Name: "CGT discount eligibility", Jurisdiction: JurisdictionAU, Status: entities.TaxChecklistOK}
		if undiscounted > 0 {
			cgt.Status = entities.TaxChecklistAttention
			cgt.Note = fmt.Sprintf("%d asset class(es) with unrealised gains are not yet eligible for the 50%% discount", undiscounted)
		}
		items = append(items, cgt)

		franking := entities.TaxComplianceItem{Name: "Franking credit records", Jurisdiction: JurisdictionAU, Status: entities.TaxChecklistNotApplicable}
		if f := ring.TaxInsights.Franking; f != nil && f.EstimatedFrankingCredits.IsPositive() {
			franking.Status = entities.TaxChecklistOK
			franking.Note = fmt.Sprintf("Estimated credits of %s", formatMoney(f.EstimatedFrankingCredits, ring.Currency))
		}
		items = append(items, franking)

	case JurisdictionNZ:
		fif := entities.TaxComplianceItem{Name: "FIF de minimis", Jurisdiction: JurisdictionNZ, Status: entities.TaxChecklistNotApplicable}
		if f := ring.TaxInsights.FIF; f != nil && f.OffshoreValue.IsPositive() {
			fif.Status = entities.TaxChecklistOK
			if f.ExceedsThreshold {
				fif.Status = entities.TaxChecklistAttention
				fif.Note = fmt.Sprintf("Offshore holdings of %s exceed the threshold", formatMoney(f.OffshoreValue, ring.Currency))
			}
		}
		items = append(items, fif)
	}

	return append(items, foreignTax)
}
