package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitErr() error {
	return NewProviderError("gemini", eris.New("too many requests"), http.StatusTooManyRequests)
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), RateLimitRetry(3), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesRateLimit(t *testing.T) {
	cfg := RateLimitRetry(3)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond

	calls := 0
	val, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", rateLimitErr()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NoRetryOnOtherErrors(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), RateLimitRetry(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("malformed response")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ExhaustsBudget(t *testing.T) {
	cfg := RateLimitRetry(3)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, rateLimitErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsRateLimited(err))
}

func TestDoVal_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, RateLimitRetry(5), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, rateLimitErr()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(rateLimitErr()))
	assert.True(t, IsRateLimited(eris.New("provider rate limit exceeded")))
	assert.False(t, IsRateLimited(eris.New("bad json")))
	assert.False(t, IsRateLimited(nil))
	// Wrapped errors keep their classification.
	assert.True(t, IsRateLimited(eris.Wrap(rateLimitErr(), "chain: attempt")))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(eris.New("read tcp: i/o timeout")))
	assert.False(t, IsTimeout(eris.New("bad json")))
	assert.False(t, IsTimeout(nil))
}
