// Package model defines the core domain types for the search
// orchestration engine.
package model

import (
	"strings"
	"time"
)

// SearchType distinguishes buyer-side from supplier-side searches.
type SearchType string

const (
	SearchTypeCustomer SearchType = "customer"
	SearchTypeSupplier SearchType = "supplier"
)

// SearchStatus is the externally visible lifecycle state of a search.
type SearchStatus string

const (
	StatusStarting   SearchStatus = "starting"
	StatusInProgress SearchStatus = "in_progress"
	StatusCompleted  SearchStatus = "completed"
	StatusFailed     SearchStatus = "failed"
)

// Phase is a named position in the fixed orchestration phase order.
type Phase string

const (
	PhaseStarting          Phase = "starting"
	PhaseBusinessPersonas  Phase = "business_personas"
	PhaseDMPersonas        Phase = "dm_personas"
	PhaseBusinessDiscovery Phase = "business_discovery"
	PhaseDecisionMakers    Phase = "decision_makers"
	PhaseMarketResearch    Phase = "market_research"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// phaseOrder is the canonical progression. A search's phase never moves
// to an earlier index in this slice.
var phaseOrder = []Phase{
	PhaseStarting,
	PhaseBusinessPersonas,
	PhaseDMPersonas,
	PhaseBusinessDiscovery,
	PhaseDecisionMakers,
	PhaseMarketResearch,
	PhaseCompleted,
	PhaseFailed,
}

// Index returns the position of p in the canonical phase order, or -1
// for an unknown phase.
func (p Phase) Index() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// PhaseAt returns the phase at the given position in the canonical
// order. Out-of-range positions clamp to the nearest end.
func PhaseAt(idx int) Phase {
	if idx < 0 {
		return phaseOrder[0]
	}
	if idx >= len(phaseOrder) {
		return phaseOrder[len(phaseOrder)-1]
	}
	return phaseOrder[idx]
}

// TaskKey identifies one of the four orchestration tasks.
type TaskKey string

const (
	TaskBusinessPersonas  TaskKey = "business_personas"
	TaskDMPersonas        TaskKey = "dm_personas"
	TaskBusinessDiscovery TaskKey = "business_discovery"
	TaskMarketResearch    TaskKey = "market_research"
)

// TaskOutcome is the terminal state of a single task.
type TaskOutcome string

const (
	OutcomeDone   TaskOutcome = "done"
	OutcomeFailed TaskOutcome = "failed"
)

// StatusDetail maps each task key to its terminal outcome as tasks settle.
type StatusDetail map[TaskKey]TaskOutcome

// Search is one user request for personas, businesses and research.
type Search struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	ProductService string       `json:"product_service"`
	Industries     []string     `json:"industries"`
	Countries      []string     `json:"countries"`
	SearchType     SearchType   `json:"search_type"`
	Phase          Phase        `json:"phase"`
	ProgressPct    int          `json:"progress_pct"`
	Status         SearchStatus `json:"status"`
	StatusDetail   StatusDetail `json:"status_detail"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Context returns the immutable generation context shared by all tasks
// of one orchestration run. Industries and countries are normalized to
// non-nil slices with blank entries removed.
func (s *Search) Context() SearchContext {
	return SearchContext{
		SearchID:       s.ID,
		UserID:         s.UserID,
		ProductService: strings.TrimSpace(s.ProductService),
		Industries:     cleanList(s.Industries),
		Countries:      cleanList(s.Countries),
		SearchType:     s.SearchType,
	}
}

// SearchContext is the read-only input every task executor works from.
// Tasks share one context and write disjoint rows, so no coordination
// beyond the progress tracker is needed between them.
type SearchContext struct {
	SearchID       string
	UserID         string
	ProductService string
	Industries     []string
	Countries      []string
	SearchType     SearchType
}

// CacheKey returns the normalized generation-cache key for this context.
// Identical product/industry/country inputs share generated personas.
func (c SearchContext) CacheKey() string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(c.ProductService)),
		strings.ToLower(strings.Join(c.Industries, ",")),
		strings.ToLower(strings.Join(c.Countries, ",")),
		string(c.SearchType),
	}
	return strings.Join(parts, "|")
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
