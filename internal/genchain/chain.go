package genchain

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/resilience"
	"github.com/sells-group/leadgen-engine/internal/validate"
)

// Chain walks providers in order until one yields a batch that passes
// the realism gate. Each provider gets one repair attempt before the
// chain advances. When every provider is exhausted the embedded
// template fallback produces the batch, so GeneratePersonas only fails
// on context cancellation.
type Chain struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
	sem       *semaphore.Weighted
	retry     resilience.RetryConfig
	cache     *Cache
}

// Option configures the chain.
type Option func(*Chain)

// WithCache enables batch memoization.
func WithCache(cache *Cache) Option {
	return func(c *Chain) {
		c.cache = cache
	}
}

// WithRetry overrides the rate-limit retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Chain) {
		c.retry = cfg
	}
}

// WithLimiter shares an externally owned outbound-call limiter instead
// of a chain-private one, so provider and tool calls count against the
// same cap.
func WithLimiter(sem *semaphore.Weighted) Option {
	return func(c *Chain) {
		c.sem = sem
	}
}

// NewLimiter builds the outbound-call limiter for a chain config.
func NewLimiter(cfg config.ChainConfig) *semaphore.Weighted {
	maxCalls := cfg.MaxConcurrentCalls
	if maxCalls <= 0 {
		maxCalls = 5
	}
	return semaphore.NewWeighted(int64(maxCalls))
}

// New creates a chain over the given providers, tried in order.
func New(cfg config.ChainConfig, providers []Provider, opts ...Option) *Chain {
	c := &Chain{
		providers: providers,
		breakers:  make(map[string]*resilience.CircuitBreaker, len(providers)),
		sem:       NewLimiter(cfg),
		retry:     resilience.RateLimitRetry(cfg.RateLimitRetries),
	}
	for _, p := range providers {
		name := p.Name()
		c.breakers[name] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("provider circuit state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// attempt is one provider try, kept for the per-generation ledger.
type attempt struct {
	provider    string
	parsedOK    bool
	validatedOK bool
	latencyMS   int64
}

// GeneratePersonas produces a validated batch for one persona kind. The
// returned source names the backend that produced the batch.
func (c *Chain) GeneratePersonas(ctx context.Context, kind model.PersonaKind, sctx model.SearchContext) ([]model.Persona, string, error) {
	cacheKey := sctx.CacheKey() + "|" + string(kind)
	if c.cache != nil {
		if batch := c.cache.Get(cacheKey, sctx.SearchID); batch != nil {
			zap.L().Info("generation cache hit",
				zap.String("search_id", sctx.SearchID),
				zap.String("kind", string(kind)))
			return batch, SourceCache, nil
		}
	}

	req := Request{
		System: personaSystem,
		Prompt: buildPrompt(kind, sctx),
		Task:   string(kind) + "_personas",
	}

	var ledger []attempt
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		batch, err := c.tryProvider(ctx, p, req, kind, sctx, &ledger)
		if err != nil {
			zap.L().Warn("provider failed, advancing chain",
				zap.String("search_id", sctx.SearchID),
				zap.String("provider", p.Name()),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}

		if c.cache != nil {
			c.cache.Put(cacheKey, batch)
		}
		logLedger(sctx.SearchID, string(kind), p.Name(), ledger)
		return batch, p.Name(), nil
	}

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	zap.L().Warn("all providers exhausted, using template fallback",
		zap.String("search_id", sctx.SearchID),
		zap.String("kind", string(kind)))
	logLedger(sctx.SearchID, string(kind), SourceFallback, ledger)
	batch := Fallback(kind, sctx)
	return batch, SourceFallback, nil
}

// tryProvider runs one generate plus at most one repair round against a
// single backend, recording each attempt in the ledger.
func (c *Chain) tryProvider(ctx context.Context, p Provider, req Request, kind model.PersonaKind, sctx model.SearchContext, ledger *[]attempt) ([]model.Persona, error) {
	text, err := c.timedCall(ctx, p, req, ledger)
	if err != nil {
		return nil, err
	}

	batch, verr := c.buildBatch(text, kind, sctx, p.Name(), ledger)
	if verr == nil {
		return batch, nil
	}

	zap.L().Info("batch failed validation, attempting repair",
		zap.String("provider", p.Name()),
		zap.String("kind", string(kind)),
		zap.Error(verr))

	repairReq := Request{
		System: req.System,
		Prompt: buildRepairPrompt(kind, text, []string{verr.Error()}),
		Task:   req.Task,
	}
	repaired, err := c.timedCall(ctx, p, repairReq, ledger)
	if err != nil {
		return nil, err
	}
	return c.buildBatch(repaired, kind, sctx, p.Name(), ledger)
}

// timedCall wraps call and opens a ledger entry for the attempt. The
// entry's parse/validate flags are filled by buildBatch.
func (c *Chain) timedCall(ctx context.Context, p Provider, req Request, ledger *[]attempt) (string, error) {
	start := time.Now()
	text, err := c.call(ctx, p, req)
	*ledger = append(*ledger, attempt{
		provider:  p.Name(),
		latencyMS: time.Since(start).Milliseconds(),
	})
	return text, err
}

// buildBatch decodes, sanitizes and gates raw provider output, marking
// the outcome on the ledger's latest entry.
func (c *Chain) buildBatch(text string, kind model.PersonaKind, sctx model.SearchContext, source string, ledger *[]attempt) ([]model.Persona, error) {
	cur := &(*ledger)[len(*ledger)-1]

	raw, err := DecodeBatch(text)
	if err != nil {
		return nil, err
	}
	cur.parsedOK = true

	batch := make([]model.Persona, 0, len(raw))
	for _, record := range raw {
		p := validate.Sanitize(kind, record, sctx)
		p.Source = source
		batch = append(batch, p)
	}

	if err := validate.ValidateBatch(kind, batch); err != nil {
		return nil, err
	}
	cur.validatedOK = true
	return batch, nil
}

// logLedger emits the attempt trail of one generation.
func logLedger(searchID, kind, source string, ledger []attempt) {
	if len(ledger) == 0 {
		return
	}
	trail := make([]string, 0, len(ledger))
	var totalMS int64
	for _, a := range ledger {
		state := "error"
		switch {
		case a.validatedOK:
			state = "ok"
		case a.parsedOK:
			state = "invalid"
		}
		trail = append(trail, a.provider+":"+state)
		totalMS += a.latencyMS
	}
	zap.L().Info("generation attempts",
		zap.String("search_id", searchID),
		zap.String("kind", kind),
		zap.String("source", source),
		zap.Strings("trail", trail),
		zap.Int64("total_latency_ms", totalMS))
}

// call runs one provider attempt through the shared semaphore, the
// provider's breaker, the 429 retry policy and the per-tier timeout.
func (c *Chain) call(ctx context.Context, p Provider, req Request) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	cb := c.breakers[p.Name()]
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger(p.Name(), req.Task)

	start := time.Now()
	text, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (string, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout())
			defer cancel()
			return p.Generate(attemptCtx, req)
		})
	})

	zap.L().Debug("provider call finished",
		zap.String("provider", p.Name()),
		zap.String("task", req.Task),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", err == nil))
	return text, err
}
