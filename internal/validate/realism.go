package validate

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-engine/internal/model"
)

// placeholderTokens are reserved values that indicate a generator
// punted instead of producing real content. Matched case-insensitively
// against whole field values.
var placeholderTokens = map[string]bool{
	"unknown": true,
	"n/a":     true,
	"default": true,
	"none":    true,
}

// bannedTitleTerms are generic substrings that disqualify a title.
var bannedTitleTerms = []string{"persona", "profile", "archetype"}

// MinMatchScore is the lowest acceptable match score for a persona.
const MinMatchScore = 60

// IsRealistic reports whether a single persona record passes the
// realism gate.
func IsRealistic(p model.Persona) bool {
	return len(RealismIssues(p)) == 0
}

// RealismIssues returns every realism violation found in the record.
// An empty slice means the record is acceptable.
func RealismIssues(p model.Persona) []string {
	var issues []string

	if p.Title == "" {
		issues = append(issues, "title: empty")
	} else {
		lower := strings.ToLower(p.Title)
		for _, term := range bannedTitleTerms {
			if strings.Contains(lower, term) {
				issues = append(issues, fmt.Sprintf("title: generic term %q", term))
				break
			}
		}
	}

	if p.Rank < 1 || p.Rank > 5 {
		issues = append(issues, fmt.Sprintf("rank: %d out of range [1,5]", p.Rank))
	}
	if p.MatchScore < MinMatchScore {
		issues = append(issues, fmt.Sprintf("match_score: %d below %d", p.MatchScore, MinMatchScore))
	}

	for field, value := range requiredStrings(p) {
		if issue := checkString(field, value); issue != "" {
			issues = append(issues, issue)
		}
	}

	for field, list := range requiredLists(p) {
		if len(list) == 0 {
			issues = append(issues, field+": empty list")
			continue
		}
		for _, item := range list {
			if issue := checkString(field+" element", item); issue != "" {
				issues = append(issues, issue)
				break
			}
		}
	}

	if p.MarketPotential.EstimatedCompanies <= 0 {
		issues = append(issues, "market_potential.estimated_companies: not positive")
	}
	if p.MarketPotential.AvgDealSizeUSD <= 0 {
		issues = append(issues, "market_potential.avg_deal_size_usd: not positive")
	}
	if p.MarketPotential.ConversionRatePct <= 0 {
		issues = append(issues, "market_potential.conversion_rate_pct: not positive")
	}

	return issues
}

// ValidateBatch checks a full persona batch: exact batch size, every
// record realistic, and no two records sharing a normalized title.
func ValidateBatch(kind model.PersonaKind, batch []model.Persona) error {
	if len(batch) != model.PersonaBatchSize {
		return eris.Errorf("validate: %s batch has %d personas, want %d", kind, len(batch), model.PersonaBatchSize)
	}

	seen := make(map[string]bool, len(batch))
	for i, p := range batch {
		if issues := RealismIssues(p); len(issues) > 0 {
			return eris.Errorf("validate: %s persona %d unrealistic: %s", kind, i, strings.Join(issues, "; "))
		}
		key := NormalizeTitle(p.Title)
		if seen[key] {
			return eris.Errorf("validate: %s batch has duplicate title %q", kind, p.Title)
		}
		seen[key] = true
	}
	return nil
}

// NormalizeTitle lowercases and collapses whitespace for duplicate
// detection.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func checkString(field, value string) string {
	if value == "" {
		return field + ": empty"
	}
	if placeholderTokens[strings.ToLower(strings.TrimSpace(value))] {
		return fmt.Sprintf("%s: placeholder value %q", field, value)
	}
	return ""
}

// requiredStrings lists the string fields the gate enforces per kind.
func requiredStrings(p model.Persona) map[string]string {
	fields := map[string]string{
		"behaviors.buying_process":     p.Behaviors.BuyingProcess,
		"behaviors.decision_timeline":  p.Behaviors.DecisionTimeline,
		"behaviors.preferred_channels": p.Behaviors.PreferredChannels,
		"behaviors.research_habits":    p.Behaviors.ResearchHabits,
	}
	switch p.Kind {
	case model.PersonaBusiness:
		fields["demographics.company_size"] = p.Demographics.CompanySize
		fields["demographics.revenue"] = p.Demographics.Revenue
		fields["demographics.geography_fit"] = p.Demographics.GeographyFit
	case model.PersonaDecisionMaker:
		fields["demographics.age_range"] = p.Demographics.AgeRange
		fields["demographics.seniority"] = p.Demographics.Seniority
		fields["demographics.years_in_role"] = p.Demographics.YearsInRole
	}
	return fields
}

func requiredLists(p model.Persona) map[string][]string {
	return map[string][]string{
		"characteristics.pain_points":   p.Characteristics.PainPoints,
		"characteristics.goals":         p.Characteristics.Goals,
		"characteristics.objections":    p.Characteristics.Objections,
		"characteristics.value_drivers": p.Characteristics.ValueDrivers,
	}
}
