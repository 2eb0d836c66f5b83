package genchain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/resilience"
)

// stubProvider returns canned responses or errors in call order.
type stubProvider struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (s *stubProvider) Name() string           { return s.name }
func (s *stubProvider) Timeout() time.Duration { return time.Second }

func (s *stubProvider) Generate(_ context.Context, _ Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", eris.New("stub: no scripted response")
}

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		FastTimeoutSecs:    1,
		QualityTimeoutSecs: 1,
		AltTimeoutSecs:     1,
		RateLimitRetries:   2,
		MaxConcurrentCalls: 5,
	}
}

// validBatchJSON renders a batch that passes the realism gate, reusing
// the deterministic templates as generation output.
func validBatchJSON(t *testing.T, kind model.PersonaKind) string {
	t.Helper()
	batch := Fallback(kind, testSearchContext())
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	return string(data)
}

func TestChain_FirstProviderWins(t *testing.T) {
	p1 := &stubProvider{name: "gemini", responses: []string{validBatchJSON(t, model.PersonaBusiness)}}
	p2 := &stubProvider{name: "claude"}
	chain := New(testChainConfig(), []Provider{p1, p2})

	batch, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, "gemini", source)
	assert.Len(t, batch, model.PersonaBatchSize)
	assert.Equal(t, "gemini", batch[0].Source)
	assert.Equal(t, 1, p1.calls)
	assert.Zero(t, p2.calls)
}

func TestChain_AdvancesOnProviderError(t *testing.T) {
	p1 := &stubProvider{name: "gemini", errs: []error{eris.New("backend unavailable")}}
	p2 := &stubProvider{name: "claude", responses: []string{validBatchJSON(t, model.PersonaBusiness)}}
	chain := New(testChainConfig(), []Provider{p1, p2})

	batch, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, "claude", source)
	assert.Equal(t, "claude", batch[0].Source)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
}

func TestChain_RepairRoundRecovers(t *testing.T) {
	// First response is a short batch; the repair call returns a full one.
	p1 := &stubProvider{
		name: "gemini",
		responses: []string{
			`[{"title": "Too Short"}]`,
			validBatchJSON(t, model.PersonaBusiness),
		},
	}
	chain := New(testChainConfig(), []Provider{p1})

	batch, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, "gemini", source)
	assert.Len(t, batch, model.PersonaBatchSize)
	assert.Equal(t, 2, p1.calls)
}

func TestChain_FallbackWhenExhausted(t *testing.T) {
	boom := eris.New("backend down")
	p1 := &stubProvider{name: "gemini", errs: []error{boom, boom}}
	p2 := &stubProvider{name: "claude", errs: []error{boom, boom}}
	chain := New(testChainConfig(), []Provider{p1, p2})

	batch, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, source)
	require.Len(t, batch, model.PersonaBatchSize)
	assert.Equal(t, SourceFallback, batch[0].Source)
}

func TestChain_RepairFailureAdvancesToFallback(t *testing.T) {
	p1 := &stubProvider{
		name: "gemini",
		responses: []string{
			`[{"title": "Too Short"}]`,
			`[{"title": "Still Too Short"}]`,
		},
	}
	chain := New(testChainConfig(), []Provider{p1})

	_, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, source)
	assert.Equal(t, 2, p1.calls)
}

func TestChain_RateLimitedCallIsRetried(t *testing.T) {
	p1 := &stubProvider{
		name: "gemini",
		errs: []error{
			resilience.NewProviderError("gemini", eris.New("rate limit exceeded"), 429),
		},
		responses: []string{"", validBatchJSON(t, model.PersonaBusiness)},
	}
	chain := New(testChainConfig(), []Provider{p1})

	_, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, "gemini", source)
	assert.Equal(t, 2, p1.calls)
}

func TestChain_CacheHit(t *testing.T) {
	p1 := &stubProvider{name: "gemini", responses: []string{validBatchJSON(t, model.PersonaBusiness)}}
	chain := New(testChainConfig(), []Provider{p1}, WithCache(NewCache(time.Hour)))

	_, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, testSearchContext())
	require.NoError(t, err)
	assert.Equal(t, "gemini", source)

	// Same normalized inputs for a different search hit the cache.
	sctx := testSearchContext()
	sctx.SearchID = "s-2"
	batch, source, err := chain.GeneratePersonas(context.Background(), model.PersonaBusiness, sctx)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, "s-2", batch[0].SearchID)
	assert.Equal(t, 1, p1.calls)
}

func TestChain_ContextCanceled(t *testing.T) {
	p1 := &stubProvider{name: "gemini", responses: []string{validBatchJSON(t, model.PersonaBusiness)}}
	chain := New(testChainConfig(), []Provider{p1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := chain.GeneratePersonas(ctx, model.PersonaBusiness, testSearchContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
