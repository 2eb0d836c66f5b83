package task

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-engine/internal/model"
)

func taskSearchContext() model.SearchContext {
	return model.SearchContext{
		SearchID:       "s-1",
		UserID:         "u-1",
		ProductService: "CRM software",
		Industries:     []string{"Technology"},
		Countries:      []string{"Saudi Arabia"},
		SearchType:     model.SearchTypeCustomer,
	}
}

func sampleBatch() []model.Persona {
	return []model.Persona{
		{Title: "Technology SMB Adopters", Rank: 1, MatchScore: 85},
		{Title: "Technology Mid-Market Transformers", Rank: 2, MatchScore: 80},
		{Title: "Technology Enterprise Innovators", Rank: 3, MatchScore: 75},
	}
}

func TestPersonaTask_GeneratesAndPersists(t *testing.T) {
	st := &mockStore{}
	gen := &mockGenerator{batch: sampleBatch(), source: "gemini"}
	task := &personaTask{kind: model.PersonaBusiness, key: model.TaskBusinessPersonas, chain: gen, store: st}

	err := task.Run(context.Background(), taskSearchContext())
	require.NoError(t, err)

	require.Len(t, st.personas, model.PersonaBatchSize)
	assert.Equal(t, "s-1", st.personas[0].SearchID)
	assert.Equal(t, model.PersonaBusiness, st.personas[0].Kind)
	assert.Equal(t, 1, gen.calls)
}

func TestPersonaTask_SkipsWhenAlreadyPersisted(t *testing.T) {
	st := &mockStore{personaCount: model.PersonaBatchSize}
	gen := &mockGenerator{batch: sampleBatch(), source: "gemini"}
	task := &personaTask{kind: model.PersonaDecisionMaker, key: model.TaskDMPersonas, chain: gen, store: st}

	err := task.Run(context.Background(), taskSearchContext())
	require.NoError(t, err)
	assert.Zero(t, gen.calls)
	assert.Empty(t, st.personas)
}

func TestPersonaTask_GenerationErrorPropagates(t *testing.T) {
	st := &mockStore{}
	gen := &mockGenerator{err: eris.New("chain exhausted by cancellation")}
	task := &personaTask{kind: model.PersonaBusiness, key: model.TaskBusinessPersonas, chain: gen, store: st}

	err := task.Run(context.Background(), taskSearchContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate business personas")
	assert.Empty(t, st.personas)
}

func TestPersonaTask_PersistErrorPropagates(t *testing.T) {
	st := &mockStore{insertPersonasErr: eris.New("connection reset")}
	gen := &mockGenerator{batch: sampleBatch(), source: "claude"}
	task := &personaTask{kind: model.PersonaBusiness, key: model.TaskBusinessPersonas, chain: gen, store: st}

	err := task.Run(context.Background(), taskSearchContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist business personas")
}

func TestRegistry_CanonicalOrder(t *testing.T) {
	execs := Registry(Deps{})
	require.Len(t, execs, 4)

	assert.Equal(t, model.TaskBusinessPersonas, execs[0].Key())
	assert.Equal(t, model.TaskDMPersonas, execs[1].Key())
	assert.Equal(t, model.TaskBusinessDiscovery, execs[2].Key())
	assert.Equal(t, model.TaskMarketResearch, execs[3].Key())

	assert.True(t, execs[0].Essential())
	assert.True(t, execs[1].Essential())
	assert.True(t, execs[2].Essential())
	assert.False(t, execs[3].Essential())

	total := 0
	for _, e := range execs {
		total += e.Weight()
	}
	assert.Equal(t, 80, total)
}
