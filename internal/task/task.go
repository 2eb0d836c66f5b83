// Package task implements the four orchestration tasks: business
// persona generation, decision-maker persona generation, business
// discovery and market research.
package task

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/progress"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/pkg/jina"
	"github.com/sells-group/leadgen-engine/pkg/perplexity"
	"github.com/sells-group/leadgen-engine/pkg/places"
)

// Executor is one orchestration task. Executors run concurrently over a
// shared read-only search context and write disjoint record sets.
type Executor interface {
	Key() model.TaskKey
	// Essential tasks decide run success; advisory tasks only degrade it.
	Essential() bool
	Weight() int
	Run(ctx context.Context, sctx model.SearchContext) error
}

// PersonaGenerator produces validated persona batches. Satisfied by
// genchain.Chain.
type PersonaGenerator interface {
	GeneratePersonas(ctx context.Context, kind model.PersonaKind, sctx model.SearchContext) ([]model.Persona, string, error)
}

// Deps carries the shared dependencies of the task registry. Limiter is
// the outbound-call cap shared with the generation chain; tool calls
// made by discovery and research count against it too.
type Deps struct {
	Store      store.Store
	Chain      PersonaGenerator
	Places     places.Client
	Jina       jina.Client
	Perplexity perplexity.Client
	Limiter    *semaphore.Weighted

	Discovery config.DiscoveryConfig
	Research  config.ResearchConfig
}

// Registry returns the fixed task set in canonical order.
func Registry(deps Deps) []Executor {
	return []Executor{
		&personaTask{
			kind:  model.PersonaBusiness,
			key:   model.TaskBusinessPersonas,
			chain: deps.Chain,
			store: deps.Store,
		},
		&personaTask{
			kind:  model.PersonaDecisionMaker,
			key:   model.TaskDMPersonas,
			chain: deps.Chain,
			store: deps.Store,
		},
		&discoveryTask{
			places:  deps.Places,
			jina:    deps.Jina,
			store:   deps.Store,
			limiter: deps.Limiter,
			cfg:     deps.Discovery,
		},
		&researchTask{
			jina:       deps.Jina,
			perplexity: deps.Perplexity,
			store:      deps.Store,
			limiter:    deps.Limiter,
			cfg:        deps.Research,
		},
	}
}

// weightFor keeps executor weights aligned with the progress model.
func weightFor(key model.TaskKey) int {
	return progress.Weight(key)
}

// acquire claims a slot on the shared outbound-call limiter when one is
// wired. The returned release is always safe to call.
func acquire(ctx context.Context, sem *semaphore.Weighted) (func(), error) {
	if sem == nil {
		return func() {}, nil
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
