// Package progress tracks and persists orchestration progress for a
// single search run. Progress percent and phase are monotonic: a late
// writer can never move either backwards.
package progress

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
)

// Task weights. Together with the initialization baseline they sum to
// 100; FinalizeSearch pins the terminal value.
const (
	BaselinePct = 20

	WeightBusinessPersonas  = 10
	WeightDMPersonas        = 10
	WeightBusinessDiscovery = 40
	WeightMarketResearch    = 20
)

// Weight returns the progress contribution of a task.
func Weight(key model.TaskKey) int {
	switch key {
	case model.TaskBusinessPersonas:
		return WeightBusinessPersonas
	case model.TaskDMPersonas:
		return WeightDMPersonas
	case model.TaskBusinessDiscovery:
		return WeightBusinessDiscovery
	case model.TaskMarketResearch:
		return WeightMarketResearch
	}
	return 0
}

// Tracker is the single writer of phase and progress for one run. Task
// goroutines report through it; it serializes writes and clamps both
// values so they only move forward.
type Tracker struct {
	st       store.Store
	searchID string

	mu       sync.Mutex
	pct      int
	phaseIdx int
	final    bool
}

// NewTracker creates a tracker for the given search. The caller is
// expected to call Begin before any task reports progress.
func NewTracker(st store.Store, searchID string) *Tracker {
	return &Tracker{
		st:       st,
		searchID: searchID,
		phaseIdx: model.PhaseStarting.Index(),
	}
}

// Pct returns the last written progress percent.
func (t *Tracker) Pct() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pct
}

// Begin records the start of a run: starting phase at 5 percent.
func (t *Tracker) Begin(ctx context.Context) error {
	return t.Advance(ctx, model.PhaseStarting, 5)
}

// Baseline marks initialization complete. Task weights accumulate on
// top of this value.
func (t *Tracker) Baseline(ctx context.Context) error {
	return t.Advance(ctx, model.PhaseBusinessPersonas, BaselinePct)
}

// Advance moves the run to at least the given phase and percent. Values
// behind the current state are clamped, never written backwards. After
// Finalize all advances are no-ops.
func (t *Tracker) Advance(ctx context.Context, phase model.Phase, pct int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.final {
		return nil
	}

	if idx := phase.Index(); idx > t.phaseIdx {
		t.phaseIdx = idx
	}
	if pct > t.pct {
		t.pct = pct
	}
	if t.pct > 95 {
		// 100 is reserved for the terminal write.
		t.pct = 95
	}

	cur := model.PhaseAt(t.phaseIdx)
	if err := t.st.UpdateProgress(ctx, t.searchID, cur, t.pct); err != nil {
		return eris.Wrapf(err, "progress: advance search %s", t.searchID)
	}
	zap.L().Debug("progress advanced",
		zap.String("search_id", t.searchID),
		zap.String("phase", string(cur)),
		zap.Int("pct", t.pct))
	return nil
}

// TaskSettled records a task's terminal outcome and, when it completed,
// credits its weight to the run's progress.
func (t *Tracker) TaskSettled(ctx context.Context, res model.TaskResult) error {
	if err := t.st.SetTaskOutcome(ctx, t.searchID, res.Key, res.Outcome); err != nil {
		return eris.Wrapf(err, "progress: record outcome for %s", res.Key)
	}
	if res.Failed() {
		zap.L().Warn("task failed",
			zap.String("search_id", t.searchID),
			zap.String("task", string(res.Key)),
			zap.String("error", res.Error))
		return nil
	}

	t.mu.Lock()
	next := t.pct + res.Weight
	t.mu.Unlock()
	return t.Advance(ctx, phaseFor(res.Key), next)
}

// Finalize writes the terminal state. A completed run lands on 100; a
// failed run keeps whatever progress it earned. Further advances after
// finalization are ignored.
func (t *Tracker) Finalize(ctx context.Context, status model.SearchStatus) error {
	t.mu.Lock()
	if t.final {
		t.mu.Unlock()
		return nil
	}
	t.final = true

	phase := model.PhaseCompleted
	pct := 100
	if status == model.StatusFailed {
		phase = model.PhaseFailed
		pct = t.pct
	}
	t.pct = pct
	t.phaseIdx = phase.Index()
	t.mu.Unlock()

	if err := t.st.FinalizeSearch(ctx, t.searchID, status, phase, pct); err != nil {
		return eris.Wrapf(err, "progress: finalize search %s", t.searchID)
	}
	zap.L().Info("search finalized",
		zap.String("search_id", t.searchID),
		zap.String("status", string(status)),
		zap.Int("pct", pct))
	return nil
}

// phaseFor maps a task to the phase its completion represents.
func phaseFor(key model.TaskKey) model.Phase {
	switch key {
	case model.TaskBusinessPersonas:
		return model.PhaseBusinessPersonas
	case model.TaskDMPersonas:
		return model.PhaseDMPersonas
	case model.TaskBusinessDiscovery:
		return model.PhaseDecisionMakers
	case model.TaskMarketResearch:
		return model.PhaseMarketResearch
	}
	return model.PhaseStarting
}
