// Package orchestrator runs the full generation pipeline for one
// search: four concurrent tasks reporting through a single progress
// tracker, an outcome policy over essential and advisory tasks, and a
// terminal write that always lands, whether the run completed, errored
// out early or panicked.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/dispatch"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/progress"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/internal/task"
)

// finalizeGrace bounds the terminal write when the run context is gone.
const finalizeGrace = 10 * time.Second

// Orchestrator drives one search run end to end.
type Orchestrator struct {
	store      store.Store
	execs      []task.Executor
	dispatcher dispatch.Dispatcher
	sink       dispatch.ErrorSink
	cfg        config.OrchestratorConfig
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithErrorSink overrides the dispatch failure sink.
func WithErrorSink(sink dispatch.ErrorSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// New creates an orchestrator over the given task set.
func New(st store.Store, execs []task.Executor, d dispatch.Dispatcher, cfg config.OrchestratorConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		execs:      execs,
		dispatcher: d,
		sink:       dispatch.LogSink,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is the outcome of one orchestration run.
type Result struct {
	Success bool
	Tasks   []model.TaskResult
}

// Run executes the pipeline for searchID on behalf of userID. A missing
// search is fatal. Any other failure still produces a terminal write:
// completed when every essential task settled done, failed otherwise.
func (o *Orchestrator) Run(ctx context.Context, searchID, userID string) (res *Result, err error) {
	search, err := o.store.GetSearch(ctx, searchID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: load search %s", searchID)
	}
	if userID != "" && search.UserID != userID {
		return nil, eris.Errorf("orchestrator: search %s does not belong to user %s", searchID, userID)
	}

	sctx := search.Context()
	if sctx.ProductService == "" {
		return nil, eris.Errorf("orchestrator: search %s has no product_service", searchID)
	}

	tracker := progress.NewTracker(o.store, searchID)

	// The terminal write runs on its own context so that a canceled run
	// context cannot strand the record in in_progress.
	var begun, terminal bool
	finalize := func(status model.SearchStatus) error {
		fctx, cancel := context.WithTimeout(context.Background(), finalizeGrace)
		defer cancel()
		if ferr := tracker.Finalize(fctx, status); ferr != nil {
			return ferr
		}
		terminal = true
		return nil
	}

	// Once Begin has marked the search in_progress, every exit must
	// leave it in a terminal state. Panics and early error returns both
	// land a best-effort failed write here.
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("orchestration panicked",
				zap.String("search_id", searchID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = nil
			err = eris.Errorf("orchestrator: run panicked: %v", r)
		}
		if err != nil && begun && !terminal {
			if ferr := finalize(model.StatusFailed); ferr != nil {
				zap.L().Error("terminal write failed",
					zap.String("search_id", searchID),
					zap.Error(ferr))
			}
		}
	}()

	zap.L().Info("orchestration started",
		zap.String("search_id", searchID),
		zap.String("user_id", search.UserID),
		zap.Strings("countries", sctx.Countries))

	if err := tracker.Begin(ctx); err != nil {
		return nil, err
	}
	begun = true
	if err := tracker.Baseline(ctx); err != nil {
		return nil, err
	}

	results := make(chan model.TaskResult, len(o.execs))
	for _, e := range o.execs {
		go func(e task.Executor) {
			results <- o.runTask(ctx, e, sctx)
		}(e)
	}

	var settled []model.TaskResult
	var failedEssential []string
	for range o.execs {
		tr := <-results
		settled = append(settled, tr)
		if serr := tracker.TaskSettled(ctx, tr); serr != nil {
			zap.L().Warn("settle write failed",
				zap.String("search_id", searchID),
				zap.String("task", string(tr.Key)),
				zap.Error(serr))
		}
		if tr.Failed() && o.essential(tr.Key) {
			failedEssential = append(failedEssential, string(tr.Key))
		}
	}

	status := model.StatusCompleted
	if len(failedEssential) > 0 {
		status = model.StatusFailed
	}
	if ferr := finalize(status); ferr != nil {
		return nil, ferr
	}

	res = &Result{Success: status == model.StatusCompleted, Tasks: settled}
	if status == model.StatusFailed {
		return res, eris.Errorf("orchestrator: search %s failed: essential tasks [%s]",
			searchID, strings.Join(failedEssential, ", "))
	}

	dispatch.Go(o.dispatcher, o.sink,
		dispatch.Job{Type: dispatch.JobPersonaBusinessMapping, SearchID: searchID, UserID: search.UserID},
		dispatch.Job{Type: dispatch.JobDMPersonaMapping, SearchID: searchID, UserID: search.UserID})
	return res, nil
}

// runTask executes one task under its watchdog deadline, converting a
// panic into a failed result instead of tearing down the run.
func (o *Orchestrator) runTask(ctx context.Context, e task.Executor, sctx model.SearchContext) (res model.TaskResult) {
	res = model.TaskResult{Key: e.Key(), Weight: e.Weight(), Outcome: model.OutcomeDone}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("task panicked",
				zap.String("search_id", sctx.SearchID),
				zap.String("task", string(e.Key())),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res.Outcome = model.OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, o.cfg.TaskTimeout())
	defer cancel()

	if err := e.Run(tctx, sctx); err != nil {
		res.Outcome = model.OutcomeFailed
		res.Error = err.Error()
	}
	return res
}

func (o *Orchestrator) essential(key model.TaskKey) bool {
	for _, e := range o.execs {
		if e.Key() == key {
			return e.Essential()
		}
	}
	return false
}
