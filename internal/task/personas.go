package task

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
)

// personaTask generates and persists one persona batch through the
// provider fallback chain. The same executor serves both persona kinds.
type personaTask struct {
	kind  model.PersonaKind
	key   model.TaskKey
	chain PersonaGenerator
	store store.Store
}

func (t *personaTask) Key() model.TaskKey { return t.key }
func (t *personaTask) Essential() bool    { return true }
func (t *personaTask) Weight() int        { return weightFor(t.key) }

func (t *personaTask) Run(ctx context.Context, sctx model.SearchContext) error {
	// A rerun that already persisted its batch is complete.
	existing, err := t.store.CountPersonas(ctx, sctx.SearchID, t.kind)
	if err != nil {
		return eris.Wrapf(err, "task: count %s personas", t.kind)
	}
	if existing >= model.PersonaBatchSize {
		zap.L().Info("persona batch already persisted, skipping generation",
			zap.String("search_id", sctx.SearchID),
			zap.String("kind", string(t.kind)))
		return nil
	}

	batch, source, err := t.chain.GeneratePersonas(ctx, t.kind, sctx)
	if err != nil {
		return eris.Wrapf(err, "task: generate %s personas", t.kind)
	}

	inserted, err := t.store.InsertPersonas(ctx, batch)
	if err != nil {
		return eris.Wrapf(err, "task: persist %s personas", t.kind)
	}

	zap.L().Info("persona batch persisted",
		zap.String("search_id", sctx.SearchID),
		zap.String("kind", string(t.kind)),
		zap.String("source", source),
		zap.Int("inserted", inserted))
	return nil
}
