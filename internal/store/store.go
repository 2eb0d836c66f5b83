// Package store defines the persistence interface for searches,
// personas, discovered entities and market research.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-engine/internal/model"
)

// ErrSearchNotFound is returned when a search record does not exist.
// The orchestrator treats this as fatal: no retry, no fallback.
var ErrSearchNotFound = eris.New("store: search not found")

// SearchFilter specifies criteria for listing searches.
type SearchFilter struct {
	Status model.SearchStatus `json:"status,omitempty"`
	UserID string             `json:"user_id,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store is the persistence interface for the orchestration engine.
// Monotonicity of phase/progress is enforced by the writer (the
// progress tracker), not by the store.
type Store interface {
	// Searches
	CreateSearch(ctx context.Context, s *model.Search) error
	GetSearch(ctx context.Context, id string) (*model.Search, error)
	ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error)
	UpdateProgress(ctx context.Context, id string, phase model.Phase, pct int) error
	SetTaskOutcome(ctx context.Context, id string, key model.TaskKey, outcome model.TaskOutcome) error
	FinalizeSearch(ctx context.Context, id string, status model.SearchStatus, phase model.Phase, pct int) error

	// Generated records. Persona inserts are idempotent on
	// (search_id, kind, rank) so a retried run cannot duplicate a batch.
	InsertPersonas(ctx context.Context, personas []model.Persona) (int, error)
	CountPersonas(ctx context.Context, searchID string, kind model.PersonaKind) (int, error)
	InsertBusinesses(ctx context.Context, businesses []model.Business) (int, error)
	InsertDecisionMakers(ctx context.Context, dms []model.DecisionMaker) (int, error)
	InsertMarketResearch(ctx context.Context, research *model.MarketResearch) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
