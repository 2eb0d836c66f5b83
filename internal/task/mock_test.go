package task

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/pkg/jina"
	"github.com/sells-group/leadgen-engine/pkg/perplexity"
	"github.com/sells-group/leadgen-engine/pkg/places"
)

// mockStore records inserts. Unused Store methods panic if reached.
type mockStore struct {
	store.Store

	personaCount    int
	personaCountErr error

	personas   []model.Persona
	businesses []model.Business
	dms        []model.DecisionMaker
	research   *model.MarketResearch

	insertPersonasErr error
	insertBizErr      error
	insertResearchErr error
}

func (m *mockStore) CountPersonas(context.Context, string, model.PersonaKind) (int, error) {
	return m.personaCount, m.personaCountErr
}

func (m *mockStore) InsertPersonas(_ context.Context, personas []model.Persona) (int, error) {
	if m.insertPersonasErr != nil {
		return 0, m.insertPersonasErr
	}
	m.personas = append(m.personas, personas...)
	return len(personas), nil
}

func (m *mockStore) InsertBusinesses(_ context.Context, businesses []model.Business) (int, error) {
	if m.insertBizErr != nil {
		return 0, m.insertBizErr
	}
	m.businesses = append(m.businesses, businesses...)
	return len(businesses), nil
}

func (m *mockStore) InsertDecisionMakers(_ context.Context, dms []model.DecisionMaker) (int, error) {
	m.dms = append(m.dms, dms...)
	return len(dms), nil
}

func (m *mockStore) InsertMarketResearch(_ context.Context, r *model.MarketResearch) error {
	if m.insertResearchErr != nil {
		return m.insertResearchErr
	}
	m.research = r
	return nil
}

// mockGenerator scripts persona chain output.
type mockGenerator struct {
	batch  []model.Persona
	source string
	err    error
	calls  int
}

func (m *mockGenerator) GeneratePersonas(_ context.Context, kind model.PersonaKind, sctx model.SearchContext) ([]model.Persona, string, error) {
	m.calls++
	if m.err != nil {
		return nil, "", m.err
	}
	out := make([]model.Persona, len(m.batch))
	copy(out, m.batch)
	for i := range out {
		out[i].SearchID = sctx.SearchID
		out[i].Kind = kind
	}
	return out, m.source, nil
}

// mockPlaces scripts Places responses per query substring.
type mockPlaces struct {
	responses map[string]*places.TextSearchResponse
	err       error
	errOn     string // fail only queries containing this substring
	calls     []string
}

func (m *mockPlaces) TextSearch(_ context.Context, query string, _ ...places.SearchOption) (*places.TextSearchResponse, error) {
	m.calls = append(m.calls, query)
	if m.err != nil {
		return nil, m.err
	}
	if m.errOn != "" && containsFold(query, m.errOn) {
		return nil, eris.Errorf("places: unexpected status 500 for %s", query)
	}
	for key, resp := range m.responses {
		if key == "" || containsFold(query, key) {
			return resp, nil
		}
	}
	return &places.TextSearchResponse{}, nil
}

// mockJina scripts search results.
type mockJina struct {
	jina.Client

	searchResp *jina.SearchResponse
	searchErr  error
	calls      []string
}

func (m *mockJina) Search(_ context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	m.calls = append(m.calls, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResp == nil {
		return &jina.SearchResponse{Code: 200}, nil
	}
	return m.searchResp, nil
}

// mockPerplexity scripts one chat completion.
type mockPerplexity struct {
	resp *perplexity.ChatCompletionResponse
	err  error
	last perplexity.ChatCompletionRequest
}

func (m *mockPerplexity) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
