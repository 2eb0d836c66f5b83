package genchain

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadgen-engine/internal/model"
)

const personaSystem = `You are a B2B market analyst. You produce realistic, specific market personas grounded in the given product, industries and countries. Respond with JSON only: no prose, no markdown fences. Never use placeholder values such as "unknown", "N/A", "default" or "none". Never use the words "persona", "profile" or "archetype" in titles.`

const personaSchema = `Each record must have exactly these fields:
{
  "title": "specific descriptive segment name",
  "rank": 1,
  "match_score": 85,
  "demographics": {%s},
  "characteristics": {
    "pain_points": ["..."], "goals": ["..."],
    "objections": ["..."], "value_drivers": ["..."]
  },
  "behaviors": {
    "buying_process": "...", "decision_timeline": "...",
    "preferred_channels": "...", "research_habits": "..."
  },
  "market_potential": {
    "estimated_companies": 1000, "avg_deal_size_usd": 50000, "conversion_rate_pct": 2.5
  },
  "locations": ["..."]
}`

// buildPrompt renders the generation prompt for one persona batch.
func buildPrompt(kind model.PersonaKind, sctx model.SearchContext) string {
	var subject, demoFields string
	switch kind {
	case model.PersonaBusiness:
		subject = "target business segments (company archetypes that would buy or supply)"
		demoFields = `"company_size": "...", "revenue": "...", "geography_fit": "..."`
	case model.PersonaDecisionMaker:
		subject = "decision-maker roles inside those target businesses"
		demoFields = `"age_range": "...", "seniority": "...", "years_in_role": "..."`
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate exactly %d %s for this %s search.\n\n", model.PersonaBatchSize, subject, sctx.SearchType)
	fmt.Fprintf(&sb, "Product/service: %s\n", sctx.ProductService)
	fmt.Fprintf(&sb, "Industries: %s\n", strings.Join(sctx.Industries, ", "))
	fmt.Fprintf(&sb, "Countries: %s\n\n", strings.Join(sctx.Countries, ", "))
	fmt.Fprintf(&sb, "Return a JSON array of %d records, ranked 1 to %d by market fit with match_score between 60 and 100.\n", model.PersonaBatchSize, model.PersonaBatchSize)
	fmt.Fprintf(&sb, personaSchema, demoFields)
	sb.WriteString("\nAll list fields must be non-empty. All numeric market_potential values must be positive. Titles must be distinct.")
	return sb.String()
}

// buildRepairPrompt asks the provider to fix a batch that failed
// validation, preserving everything that was already acceptable.
func buildRepairPrompt(kind model.PersonaKind, previous string, issues []string) string {
	var sb strings.Builder
	sb.WriteString("The JSON you produced failed validation. Fix only the problems listed, keep everything else unchanged, and return the corrected JSON array with the same structure.\n\nProblems:\n")
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- %s\n", issue)
	}
	fmt.Fprintf(&sb, "\nKind: %s\n\nPrevious output:\n%s\n", kind, previous)
	return sb.String()
}
