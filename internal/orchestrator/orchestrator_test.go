package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/dispatch"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/internal/task"
)

// recordingStore captures every lifecycle write of a run. With honorCtx
// set it rejects writes on a dead context, like a real driver would;
// failUpdateAt fails the Nth and later UpdateProgress calls.
type recordingStore struct {
	store.Store

	search       *model.Search
	getErr       error
	updateErr    error
	failUpdateAt int
	honorCtx     bool
	updates      int
	outcomes     map[model.TaskKey]model.TaskOutcome
	phases       []model.Phase
	pcts         []int
	finalSt      model.SearchStatus
	finalPct     int
	finalized    bool
}

func (s *recordingStore) GetSearch(context.Context, string) (*model.Search, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.search, nil
}

func (s *recordingStore) UpdateProgress(ctx context.Context, _ string, phase model.Phase, pct int) error {
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.updates++
	if s.updateErr != nil && s.updates >= s.failUpdateAt {
		return s.updateErr
	}
	s.phases = append(s.phases, phase)
	s.pcts = append(s.pcts, pct)
	return nil
}

func (s *recordingStore) SetTaskOutcome(ctx context.Context, _ string, key model.TaskKey, outcome model.TaskOutcome) error {
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.outcomes == nil {
		s.outcomes = make(map[model.TaskKey]model.TaskOutcome)
	}
	s.outcomes[key] = outcome
	return nil
}

func (s *recordingStore) FinalizeSearch(ctx context.Context, _ string, status model.SearchStatus, _ model.Phase, pct int) error {
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.finalized = true
	s.finalSt = status
	s.finalPct = pct
	return nil
}

// stubExec is a scripted task executor.
type stubExec struct {
	key       model.TaskKey
	essential bool
	weight    int
	run       func(ctx context.Context, sctx model.SearchContext) error
}

func (e *stubExec) Key() model.TaskKey { return e.key }
func (e *stubExec) Essential() bool    { return e.essential }
func (e *stubExec) Weight() int        { return e.weight }

func (e *stubExec) Run(ctx context.Context, sctx model.SearchContext) error {
	if e.run == nil {
		return nil
	}
	return e.run(ctx, sctx)
}

// recordingDispatcher collects dispatched jobs and signals arrival.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []dispatch.Job
	seen chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{seen: make(chan struct{}, 8)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job dispatch.Job) error {
	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	d.mu.Unlock()
	d.seen <- struct{}{}
	return nil
}

func (d *recordingDispatcher) await(t *testing.T, n int) []dispatch.Job {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-d.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch did not arrive")
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Job, len(d.jobs))
	copy(out, d.jobs)
	return out
}

func testSearch() *model.Search {
	return &model.Search{
		ID:             "s-1",
		UserID:         "u-1",
		ProductService: "CRM software",
		Industries:     []string{"Technology"},
		Countries:      []string{"Saudi Arabia"},
		SearchType:     model.SearchTypeCustomer,
		Status:         model.StatusStarting,
		Phase:          model.PhaseStarting,
	}
}

func fullRegistry(fail map[model.TaskKey]error) []task.Executor {
	mk := func(key model.TaskKey, essential bool, weight int) task.Executor {
		return &stubExec{key: key, essential: essential, weight: weight, run: func(context.Context, model.SearchContext) error {
			return fail[key]
		}}
	}
	return []task.Executor{
		mk(model.TaskBusinessPersonas, true, 10),
		mk(model.TaskDMPersonas, true, 10),
		mk(model.TaskBusinessDiscovery, true, 40),
		mk(model.TaskMarketResearch, false, 20),
	}
}

func orchConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{TaskTimeoutSecs: 30}
}

func TestRun_AllTasksCompleted(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	d := newRecordingDispatcher()
	o := New(st, fullRegistry(nil), d, orchConfig())

	res, err := o.Run(context.Background(), "s-1", "u-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Tasks, 4)

	assert.True(t, st.finalized)
	assert.Equal(t, model.StatusCompleted, st.finalSt)
	assert.Equal(t, 100, st.finalPct)
	for _, key := range []model.TaskKey{
		model.TaskBusinessPersonas, model.TaskDMPersonas,
		model.TaskBusinessDiscovery, model.TaskMarketResearch,
	} {
		assert.Equal(t, model.OutcomeDone, st.outcomes[key], key)
	}

	jobs := d.await(t, 2)
	types := []string{jobs[0].Type, jobs[1].Type}
	assert.Contains(t, types, dispatch.JobPersonaBusinessMapping)
	assert.Contains(t, types, dispatch.JobDMPersonaMapping)
	assert.Equal(t, "s-1", jobs[0].SearchID)
}

func TestRun_AdvisoryFailureStillCompletes(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	d := newRecordingDispatcher()
	fail := map[model.TaskKey]error{model.TaskMarketResearch: eris.New("research provider down")}
	o := New(st, fullRegistry(fail), d, orchConfig())

	res, err := o.Run(context.Background(), "s-1", "u-1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, model.StatusCompleted, st.finalSt)
	assert.Equal(t, 100, st.finalPct)
	assert.Equal(t, model.OutcomeFailed, st.outcomes[model.TaskMarketResearch])
	d.await(t, 2)
}

func TestRun_EssentialFailureFailsRun(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	d := newRecordingDispatcher()
	fail := map[model.TaskKey]error{model.TaskBusinessDiscovery: eris.New("places unavailable")}
	o := New(st, fullRegistry(fail), d, orchConfig())

	res, err := o.Run(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business_discovery")
	require.NotNil(t, res)
	assert.False(t, res.Success)

	assert.Equal(t, model.StatusFailed, st.finalSt)
	// Earned progress is kept, never reset.
	assert.Greater(t, st.finalPct, 0)
	assert.Less(t, st.finalPct, 100)
	assert.Equal(t, model.OutcomeFailed, st.outcomes[model.TaskBusinessDiscovery])

	time.Sleep(50 * time.Millisecond)
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.jobs)
}

func TestRun_SearchNotFoundIsFatal(t *testing.T) {
	st := &recordingStore{getErr: store.ErrSearchNotFound}
	o := New(st, fullRegistry(nil), dispatch.Noop{}, orchConfig())

	_, err := o.Run(context.Background(), "missing", "u-1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrSearchNotFound))
	assert.False(t, st.finalized)
	assert.Empty(t, st.phases)
}

func TestRun_MissingProductIsFatal(t *testing.T) {
	s := testSearch()
	s.ProductService = "  "
	st := &recordingStore{search: s}
	o := New(st, fullRegistry(nil), dispatch.Noop{}, orchConfig())

	_, err := o.Run(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product_service")
	assert.Empty(t, st.phases)
	assert.False(t, st.finalized)
}

func TestRun_RejectsForeignSearch(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	o := New(st, fullRegistry(nil), dispatch.Noop{}, orchConfig())

	_, err := o.Run(context.Background(), "s-1", "someone-else")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
	assert.False(t, st.finalized)
}

func TestRun_TaskPanicBecomesFailedResult(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	execs := fullRegistry(nil)
	execs[2] = &stubExec{key: model.TaskBusinessDiscovery, essential: true, weight: 40,
		run: func(context.Context, model.SearchContext) error { panic("nil map write") }}
	o := New(st, execs, dispatch.Noop{}, orchConfig())

	_, err := o.Run(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business_discovery")
	assert.Equal(t, model.StatusFailed, st.finalSt)
	assert.Equal(t, model.OutcomeFailed, st.outcomes[model.TaskBusinessDiscovery])
	// The other tasks still settled.
	assert.Equal(t, model.OutcomeDone, st.outcomes[model.TaskBusinessPersonas])
}

func TestRun_TaskTimeoutFailsTask(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	execs := fullRegistry(nil)
	execs[0] = &stubExec{key: model.TaskBusinessPersonas, essential: true, weight: 10,
		run: func(ctx context.Context, _ model.SearchContext) error {
			<-ctx.Done()
			return ctx.Err()
		}}
	cfg := config.OrchestratorConfig{TaskTimeoutSecs: 0}
	o := New(st, execs, dispatch.Noop{}, cfg)

	_, err := o.Run(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, st.finalSt)
	assert.Equal(t, model.OutcomeFailed, st.outcomes[model.TaskBusinessPersonas])
}

func TestRun_BaselineWriteFailureStillFinalizes(t *testing.T) {
	// Begin succeeds, the baseline write fails. The run errors out
	// before launching tasks but must not leave the search in_progress.
	st := &recordingStore{
		search:       testSearch(),
		updateErr:    eris.New("connection reset"),
		failUpdateAt: 2,
	}
	o := New(st, fullRegistry(nil), dispatch.Noop{}, orchConfig())

	_, err := o.Run(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	require.True(t, st.finalized)
	assert.Equal(t, model.StatusFailed, st.finalSt)
	assert.Empty(t, st.outcomes)
}

func TestRun_CanceledContextStillFinalizes(t *testing.T) {
	// A store that honors context deadlines rejects writes once the run
	// context dies mid-flight. The terminal write must still land.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &recordingStore{search: testSearch(), honorCtx: true}
	execs := fullRegistry(nil)
	execs[2] = &stubExec{key: model.TaskBusinessDiscovery, essential: true, weight: 40,
		run: func(tctx context.Context, _ model.SearchContext) error {
			cancel()
			<-tctx.Done()
			return tctx.Err()
		}}
	o := New(st, execs, dispatch.Noop{}, orchConfig())

	_, err := o.Run(ctx, "s-1", "u-1")
	require.Error(t, err)
	require.True(t, st.finalized)
	assert.Equal(t, model.StatusFailed, st.finalSt)
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	st := &recordingStore{search: testSearch()}
	o := New(st, fullRegistry(nil), dispatch.Noop{}, orchConfig())
	_, err := o.Run(context.Background(), "s-1", "u-1")
	require.NoError(t, err)

	last := -1
	for _, pct := range st.pcts {
		assert.GreaterOrEqual(t, pct, last)
		last = pct
	}
	assert.LessOrEqual(t, last, 95)
}
