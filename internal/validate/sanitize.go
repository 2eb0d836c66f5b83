// Package validate coerces raw generated persona data into typed
// records and gates them behind a deterministic realism check. The
// realism predicate is the sole gate between "accept and persist" and
// "repair or fall back", so it is side-effect-free and has no tunables.
package validate

import (
	"strconv"
	"strings"

	"github.com/sells-group/leadgen-engine/internal/model"
)

// Sanitize coerces one raw generated record into a typed Persona.
// Missing or mistyped fields become empty/zero values; this layer never
// substitutes semantic content. Placeholders are caught by the realism
// gate, not created here.
func Sanitize(kind model.PersonaKind, raw map[string]any, sctx model.SearchContext) model.Persona {
	p := model.Persona{
		SearchID:   sctx.SearchID,
		Kind:       kind,
		Title:      asString(raw["title"]),
		Rank:       asInt(raw["rank"]),
		MatchScore: asInt(raw["match_score"]),
		Locations:  asStringList(raw["locations"]),
	}

	if demo, ok := raw["demographics"].(map[string]any); ok {
		p.Demographics = model.Demographics{
			CompanySize:  asString(demo["company_size"]),
			Revenue:      asString(demo["revenue"]),
			AgeRange:     asString(demo["age_range"]),
			Seniority:    asString(demo["seniority"]),
			Education:    asString(demo["education"]),
			YearsInRole:  asString(demo["years_in_role"]),
			GeographyFit: asString(demo["geography_fit"]),
		}
	}

	if ch, ok := raw["characteristics"].(map[string]any); ok {
		p.Characteristics = model.Characteristics{
			PainPoints:   asStringList(ch["pain_points"]),
			Goals:        asStringList(ch["goals"]),
			Objections:   asStringList(ch["objections"]),
			ValueDrivers: asStringList(ch["value_drivers"]),
		}
	}

	if bh, ok := raw["behaviors"].(map[string]any); ok {
		p.Behaviors = model.Behaviors{
			BuyingProcess:     asString(bh["buying_process"]),
			DecisionTimeline:  asString(bh["decision_timeline"]),
			PreferredChannels: asString(bh["preferred_channels"]),
			ResearchHabits:    asString(bh["research_habits"]),
		}
	}

	if mp, ok := raw["market_potential"].(map[string]any); ok {
		p.MarketPotential = model.MarketPotential{
			EstimatedCompanies: asInt(mp["estimated_companies"]),
			AvgDealSizeUSD:     asFloat(mp["avg_deal_size_usd"]),
			ConversionRatePct:  asFloat(mp["conversion_rate_pct"]),
		}
	}

	return p
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asStringList(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
