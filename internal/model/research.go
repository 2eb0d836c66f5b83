package model

import "time"

// Reference is an external web source cited by market research.
type Reference struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// MarketResearch is the structured market-sizing object produced by the
// research task. A response that cannot be parsed into this shape is a
// hard task failure; the engine never fabricates a placeholder object,
// because downstream consumers distinguish "no data" from invented data.
type MarketResearch struct {
	ID               string      `json:"id,omitempty"`
	SearchID         string      `json:"search_id,omitempty"`
	MarketSizeUSD    float64     `json:"market_size_usd"`
	GrowthRatePct    float64     `json:"growth_rate_pct"`
	TAMUSDB          float64     `json:"tam_usd_b"`
	SAMUSDB          float64     `json:"sam_usd_b"`
	SOMUSDB          float64     `json:"som_usd_b"`
	KeyTrends        []string    `json:"key_trends"`
	CompetitiveNotes string      `json:"competitive_notes,omitempty"`
	References       []Reference `json:"references"`
	CreatedAt        time.Time   `json:"created_at,omitempty"`
}
