package model

// PersonaKind distinguishes the two persona batches a search produces.
type PersonaKind string

const (
	PersonaBusiness      PersonaKind = "business"
	PersonaDecisionMaker PersonaKind = "decision_maker"
)

// PersonaBatchSize is the number of personas each generation task must
// end with, whether generated, repaired or synthesized.
const PersonaBatchSize = 3

// Demographics describes the firmographic or personal profile of a persona.
type Demographics struct {
	CompanySize  string `json:"company_size,omitempty"`
	Revenue      string `json:"revenue,omitempty"`
	AgeRange     string `json:"age_range,omitempty"`
	Seniority    string `json:"seniority,omitempty"`
	Education    string `json:"education,omitempty"`
	YearsInRole  string `json:"years_in_role,omitempty"`
	GeographyFit string `json:"geography_fit,omitempty"`
}

// Characteristics holds list-valued traits of a persona. Every list must
// be non-empty and free of placeholder tokens to pass the realism gate.
type Characteristics struct {
	PainPoints   []string `json:"pain_points"`
	Goals        []string `json:"goals"`
	Objections   []string `json:"objections"`
	ValueDrivers []string `json:"value_drivers"`
}

// Behaviors describes how the persona researches and buys.
type Behaviors struct {
	BuyingProcess     string `json:"buying_process"`
	DecisionTimeline  string `json:"decision_timeline"`
	PreferredChannels string `json:"preferred_channels"`
	ResearchHabits    string `json:"research_habits"`
}

// MarketPotential quantifies the opportunity a persona represents. All
// values must be strictly positive.
type MarketPotential struct {
	EstimatedCompanies int     `json:"estimated_companies"`
	AvgDealSizeUSD     float64 `json:"avg_deal_size_usd"`
	ConversionRatePct  float64 `json:"conversion_rate_pct"`
}

// Persona is a synthesized buyer-company or decision-maker archetype.
// Personas are written once after validation and never mutated by the
// orchestration engine.
type Persona struct {
	ID              string          `json:"id,omitempty"`
	SearchID        string          `json:"search_id,omitempty"`
	Kind            PersonaKind     `json:"kind"`
	Title           string          `json:"title"`
	Rank            int             `json:"rank"`
	MatchScore      int             `json:"match_score"`
	Demographics    Demographics    `json:"demographics"`
	Characteristics Characteristics `json:"characteristics"`
	Behaviors       Behaviors       `json:"behaviors"`
	MarketPotential MarketPotential `json:"market_potential"`
	Locations       []string        `json:"locations,omitempty"`
	Source          string          `json:"source,omitempty"` // provider id or "fallback"
}
