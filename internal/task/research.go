package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/genchain"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/pkg/jina"
	"github.com/sells-group/leadgen-engine/pkg/perplexity"
)

// researchTask gathers web references for the market and asks
// Perplexity for a structured market-sizing object. An unparseable
// response is a hard failure; the task never fabricates numbers.
type researchTask struct {
	jina       jina.Client
	perplexity perplexity.Client
	store      store.Store
	limiter    *semaphore.Weighted
	cfg        config.ResearchConfig
}

func (t *researchTask) Key() model.TaskKey { return model.TaskMarketResearch }
func (t *researchTask) Essential() bool    { return false }
func (t *researchTask) Weight() int        { return weightFor(model.TaskMarketResearch) }

// researchSchema is the response_format schema sent to Perplexity.
var researchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"market_size_usd":   map[string]any{"type": "number"},
		"growth_rate_pct":   map[string]any{"type": "number"},
		"tam_usd_b":         map[string]any{"type": "number"},
		"sam_usd_b":         map[string]any{"type": "number"},
		"som_usd_b":         map[string]any{"type": "number"},
		"key_trends":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"competitive_notes": map[string]any{"type": "string"},
	},
	"required": []string{"market_size_usd", "growth_rate_pct", "key_trends"},
}

func (t *researchTask) Run(ctx context.Context, sctx model.SearchContext) error {
	rctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout())
	defer cancel()

	refs := t.gatherReferences(rctx, sctx)

	research, citations, err := t.generate(rctx, sctx, refs)
	if err != nil {
		return err
	}

	research.SearchID = sctx.SearchID
	research.References = mergeReferences(refs, citations, t.cfg.MaxReferences)

	if err := t.store.InsertMarketResearch(ctx, research); err != nil {
		return eris.Wrap(err, "task: persist market research")
	}
	zap.L().Info("market research persisted",
		zap.String("search_id", sctx.SearchID),
		zap.Int("references", len(research.References)))
	return nil
}

// gatherReferences collects web sources for the market question.
// Reference gathering is best effort; generation proceeds without it.
func (t *researchTask) gatherReferences(ctx context.Context, sctx model.SearchContext) []model.Reference {
	query := fmt.Sprintf("%s market size %s %s",
		sctx.ProductService,
		strings.Join(sctx.Industries, " "),
		strings.Join(sctx.Countries, " "))

	release, aerr := acquire(ctx, t.limiter)
	if aerr != nil {
		return nil
	}
	resp, err := t.jina.Search(ctx, query)
	release()
	if err != nil {
		zap.L().Warn("reference search failed",
			zap.String("search_id", sctx.SearchID),
			zap.Error(err))
		return nil
	}

	limit := t.cfg.MaxReferences
	refs := make([]model.Reference, 0, limit)
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		refs = append(refs, model.Reference{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
		if len(refs) >= limit {
			break
		}
	}
	return refs
}

// generate asks Perplexity for the structured research object.
func (t *researchTask) generate(ctx context.Context, sctx model.SearchContext, refs []model.Reference) (*model.MarketResearch, []string, error) {
	release, aerr := acquire(ctx, t.limiter)
	if aerr != nil {
		return nil, nil, aerr
	}
	defer release()

	resp, err := t.perplexity.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "You are a market research analyst. Answer with a single JSON object matching the requested schema. All monetary values in USD; tam/sam/som in billions."},
			{Role: "user", Content: buildResearchPrompt(sctx, refs)},
		},
		ResponseFormat: &perplexity.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &perplexity.JSONSchemaFormat{Schema: researchSchema},
		},
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "task: market research generation")
	}

	var research model.MarketResearch
	doc := genchain.ExtractJSON(resp.Text())
	if err := json.Unmarshal([]byte(doc), &research); err != nil {
		return nil, nil, eris.Wrap(err, "task: parse market research response")
	}
	if research.MarketSizeUSD <= 0 || len(research.KeyTrends) == 0 {
		return nil, nil, eris.New("task: market research response missing required figures")
	}
	return &research, resp.Citations, nil
}

func buildResearchPrompt(sctx model.SearchContext, refs []model.Reference) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Estimate the market for %q in industries [%s] across countries [%s].\n",
		sctx.ProductService,
		strings.Join(sctx.Industries, ", "),
		strings.Join(sctx.Countries, ", "))
	sb.WriteString("Provide market_size_usd, growth_rate_pct, tam_usd_b, sam_usd_b, som_usd_b, key_trends and competitive_notes.\n")
	if len(refs) > 0 {
		sb.WriteString("Consider these sources:\n")
		for _, r := range refs {
			fmt.Fprintf(&sb, "- %s (%s)\n", r.Title, r.URL)
		}
	}
	return sb.String()
}

// mergeReferences combines gathered references with response citations,
// deduplicating by URL and capping the list.
func mergeReferences(refs []model.Reference, citations []string, limit int) []model.Reference {
	seen := make(map[string]bool, len(refs)+len(citations))
	out := make([]model.Reference, 0, limit)

	add := func(r model.Reference) {
		if r.URL == "" || seen[r.URL] || len(out) >= limit {
			return
		}
		seen[r.URL] = true
		out = append(out, r)
	}

	for _, r := range refs {
		add(r)
	}
	for _, url := range citations {
		add(model.Reference{URL: url})
	}
	return out
}
