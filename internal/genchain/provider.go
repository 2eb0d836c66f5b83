// Package genchain runs persona generation through an ordered provider
// fallback chain with validation, one repair attempt per provider, and
// a deterministic template fallback that cannot fail.
package genchain

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-engine/internal/resilience"
	"github.com/sells-group/leadgen-engine/pkg/anthropic"
	"github.com/sells-group/leadgen-engine/pkg/gemini"
	"github.com/sells-group/leadgen-engine/pkg/perplexity"
)

// Source values recorded on personas.
const (
	SourceGemini     = "gemini"
	SourceClaude     = "claude"
	SourcePerplexity = "perplexity"
	SourceFallback   = "fallback"
	SourceCache      = "cache"
)

// Request is one generation request sent to a provider.
type Request struct {
	System string
	Prompt string
	Task   string // task key, for logging and cost attribution
}

// Provider is a single generative backend in the fallback chain.
type Provider interface {
	Name() string
	// Timeout is the per-attempt deadline for this backend.
	Timeout() time.Duration
	Generate(ctx context.Context, req Request) (string, error)
}

// geminiProvider is the fast, cheap first tier.
type geminiProvider struct {
	client  gemini.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGeminiProvider wraps a Gemini client as the first chain tier.
func NewGeminiProvider(client gemini.Client, timeout time.Duration) Provider {
	return &geminiProvider{
		client:  client,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (p *geminiProvider) Name() string           { return SourceGemini }
func (p *geminiProvider) Timeout() time.Duration { return p.timeout }

func (p *geminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	text, err := p.client.GenerateJSON(ctx, req.System+"\n\n"+req.Prompt)
	if err != nil {
		return "", resilience.NewProviderError(SourceGemini, err, 0)
	}
	return text, nil
}

// claudeProvider is the quality second tier.
type claudeProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewClaudeProvider wraps an Anthropic client as the second chain tier.
func NewClaudeProvider(client anthropic.Client, model string, maxTokens int, timeout time.Duration) Provider {
	return &claudeProvider{
		client:    client,
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (p *claudeProvider) Name() string           { return SourceClaude }
func (p *claudeProvider) Timeout() time.Duration { return p.timeout }

func (p *claudeProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(req.System),
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", resilience.NewProviderError(SourceClaude, err, 0)
	}
	resp.Usage.LogCost(p.model, req.Task)
	return resp.Text(), nil
}

// perplexityProvider is the third tier.
type perplexityProvider struct {
	client  perplexity.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewPerplexityProvider wraps a Perplexity client as the third chain tier.
func NewPerplexityProvider(client perplexity.Client, timeout time.Duration) Provider {
	return &perplexityProvider{
		client:  client,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (p *perplexityProvider) Name() string           { return SourcePerplexity }
func (p *perplexityProvider) Timeout() time.Duration { return p.timeout }

func (p *perplexityProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return "", resilience.NewProviderError(SourcePerplexity, err, 0)
	}
	return resp.Text(), nil
}
