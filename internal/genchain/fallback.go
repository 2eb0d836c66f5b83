package genchain

import (
	_ "embed"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-engine/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// fallbackTemplate is one deterministic persona skeleton. Placeholders
// {product}, {industry} and {countries} are substituted from the search
// context at build time.
type fallbackTemplate struct {
	Title           string              `yaml:"title"`
	MatchScore      int                 `yaml:"match_score"`
	Demographics    map[string]string   `yaml:"demographics"`
	Characteristics map[string][]string `yaml:"characteristics"`
	Behaviors       map[string]string   `yaml:"behaviors"`
	MarketPotential struct {
		EstimatedCompanies int     `yaml:"estimated_companies"`
		AvgDealSizeUSD     float64 `yaml:"avg_deal_size_usd"`
		ConversionRatePct  float64 `yaml:"conversion_rate_pct"`
	} `yaml:"market_potential"`
}

type templateSet struct {
	Business      []fallbackTemplate `yaml:"business"`
	DecisionMaker []fallbackTemplate `yaml:"decision_maker"`
}

var (
	templatesOnce sync.Once
	templates     templateSet
	templatesErr  error
)

func loadTemplates() (templateSet, error) {
	templatesOnce.Do(func() {
		templatesErr = yaml.Unmarshal(templatesYAML, &templates)
	})
	return templates, templatesErr
}

var titleCaser = cases.Title(language.English)

// Fallback synthesizes a full persona batch from the embedded templates.
// It is the chain's terminal step and always returns a batch that passes
// the realism gate.
func Fallback(kind model.PersonaKind, sctx model.SearchContext) []model.Persona {
	set, err := loadTemplates()
	if err != nil {
		// Templates are compiled into the binary; a parse failure is a
		// build defect, not a runtime condition.
		panic(err)
	}

	tmpls := set.Business
	if kind == model.PersonaDecisionMaker {
		tmpls = set.DecisionMaker
	}

	industry := "General"
	if len(sctx.Industries) > 0 {
		industry = titleCaser.String(sctx.Industries[0])
	}
	countries := "target markets"
	if len(sctx.Countries) > 0 {
		countries = strings.Join(sctx.Countries, ", ")
	}
	product := sctx.ProductService
	if product == "" {
		product = "the offering"
	}

	repl := strings.NewReplacer(
		"{product}", product,
		"{industry}", industry,
		"{countries}", countries,
	)

	batch := make([]model.Persona, 0, len(tmpls))
	for i, t := range tmpls {
		p := model.Persona{
			SearchID:   sctx.SearchID,
			Kind:       kind,
			Title:      repl.Replace(t.Title),
			Rank:       i + 1,
			MatchScore: t.MatchScore,
			Demographics: model.Demographics{
				CompanySize:  repl.Replace(t.Demographics["company_size"]),
				Revenue:      repl.Replace(t.Demographics["revenue"]),
				AgeRange:     repl.Replace(t.Demographics["age_range"]),
				Seniority:    repl.Replace(t.Demographics["seniority"]),
				YearsInRole:  repl.Replace(t.Demographics["years_in_role"]),
				GeographyFit: repl.Replace(t.Demographics["geography_fit"]),
			},
			Characteristics: model.Characteristics{
				PainPoints:   replaceAll(repl, t.Characteristics["pain_points"]),
				Goals:        replaceAll(repl, t.Characteristics["goals"]),
				Objections:   replaceAll(repl, t.Characteristics["objections"]),
				ValueDrivers: replaceAll(repl, t.Characteristics["value_drivers"]),
			},
			Behaviors: model.Behaviors{
				BuyingProcess:     repl.Replace(t.Behaviors["buying_process"]),
				DecisionTimeline:  repl.Replace(t.Behaviors["decision_timeline"]),
				PreferredChannels: repl.Replace(t.Behaviors["preferred_channels"]),
				ResearchHabits:    repl.Replace(t.Behaviors["research_habits"]),
			},
			MarketPotential: model.MarketPotential{
				EstimatedCompanies: t.MarketPotential.EstimatedCompanies,
				AvgDealSizeUSD:     t.MarketPotential.AvgDealSizeUSD,
				ConversionRatePct:  t.MarketPotential.ConversionRatePct,
			},
			Locations: sctx.Countries,
			Source:    SourceFallback,
		}
		batch = append(batch, p)
	}
	return batch
}

func replaceAll(repl *strings.Replacer, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = repl.Replace(s)
	}
	return out
}
