package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
)

// routerStore backs the HTTP surface in tests.
type routerStore struct {
	store.Store

	searches map[string]*model.Search
	created  []*model.Search
	listed   store.SearchFilter
}

func newRouterStore() *routerStore {
	return &routerStore{searches: map[string]*model.Search{}}
}

func (s *routerStore) CreateSearch(_ context.Context, sr *model.Search) error {
	if sr.ID == "" {
		sr.ID = "generated-id"
	}
	sr.Status = model.StatusStarting
	sr.Phase = model.PhaseStarting
	sr.CreatedAt = time.Now().UTC()
	s.created = append(s.created, sr)
	s.searches[sr.ID] = sr
	return nil
}

func (s *routerStore) GetSearch(_ context.Context, id string) (*model.Search, error) {
	sr, ok := s.searches[id]
	if !ok {
		return nil, store.ErrSearchNotFound
	}
	return sr, nil
}

func (s *routerStore) ListSearches(_ context.Context, filter store.SearchFilter) ([]model.Search, error) {
	s.listed = filter
	out := make([]model.Search, 0, len(s.searches))
	for _, sr := range s.searches {
		out = append(out, *sr)
	}
	return out, nil
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(newRouterStore(), func(string, string) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRouter_CreateSearchLaunchesRun(t *testing.T) {
	st := newRouterStore()
	var launchedID, launchedUser string
	r := newRouter(st, func(id, user string) { launchedID, launchedUser = id, user })

	body := `{"user_id":"u-1","product_service":"CRM software","industries":["Technology"],"countries":["Saudi Arabia"],"search_type":"customer"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/searches", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, st.created, 1)
	assert.Equal(t, "generated-id", launchedID)
	assert.Equal(t, "u-1", launchedUser)

	var resp model.Search
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated-id", resp.ID)
	assert.Equal(t, model.StatusStarting, resp.Status)
}

func TestRouter_CreateSearchValidation(t *testing.T) {
	r := newRouter(newRouterStore(), func(string, string) {})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{`, "invalid request body"},
		{"missing product", `{"user_id":"u-1"}`, "product_service is required"},
		{"bad type", `{"product_service":"x","search_type":"partner"}`, "customer or supplier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/searches", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRouter_GetSearch(t *testing.T) {
	st := newRouterStore()
	st.searches["s-1"] = &model.Search{ID: "s-1", ProgressPct: 60, Phase: model.PhaseBusinessDiscovery, Status: model.StatusInProgress}
	r := newRouter(st, func(string, string) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searches/s-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.Search
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.ProgressPct)
	assert.Equal(t, model.PhaseBusinessDiscovery, resp.Phase)
}

func TestRouter_GetSearchNotFound(t *testing.T) {
	r := newRouter(newRouterStore(), func(string, string) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searches/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ListSearchesFilter(t *testing.T) {
	st := newRouterStore()
	st.searches["s-1"] = &model.Search{ID: "s-1", Status: model.StatusCompleted}
	r := newRouter(st, func(string, string) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searches?status=completed&user_id=u-1&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, model.StatusCompleted, st.listed.Status)
	assert.Equal(t, "u-1", st.listed.UserID)
	assert.Equal(t, 10, st.listed.Limit)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searches?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
