package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_ResearchQuery_Succeeds(t *testing.T) {
	p := NewMockProvider("anthropic")
	answer, err := p.ResearchQuery(context.Background(), "how do goroutines work")
	require.NoError(t, err)
	assert.Contains(t, answer, "anthropic")
	assert.Equal(t, int64(1), p.UsageStats().SuccessfulRequests)
}

func TestMockProvider_FailAfter_TripsQueryFailed(t *testing.T) {
	p := NewMockProvider("openai", WithFailAfter(1))

	_, err := p.ResearchQuery(context.Background(), "first")
	require.NoError(t, err)

	_, err = p.ResearchQuery(context.Background(), "second")
	require.Error(t, err)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeQueryFailed, provErr.Code)
	assert.Equal(t, "openai", provErr.Provider)
	assert.False(t, provErr.Retryable())
}

func TestError_Retryable_MatchesTransientSet(t *testing.T) {
	assert.True(t, Timeout("p", "x").Retryable())
	assert.True(t, RateLimitExceeded("p", 1, 1).Retryable())
	assert.True(t, ServiceUnavailable("p", "x", nil).Retryable())
	assert.False(t, AuthenticationFailed("p", "x").Retryable())
	assert.False(t, InvalidResponse("p", "x").Retryable())
}

func TestMockProvider_ContextCancellation_ReturnsTimeout(t *testing.T) {
	p := NewMockProvider("slow", WithLatency(50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := p.ResearchQuery(ctx, "query")
	require.Error(t, err)
	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeTimeout, provErr.Code)
}

func TestMockProvider_HealthCheck_ReportsOverride(t *testing.T) {
	p := NewMockProvider("flaky", WithHealth(Degraded("consecutive failures")))
	health := p.HealthCheck(context.Background())
	assert.Equal(t, HealthDegraded, health.State)
	assert.Equal(t, "consecutive failures", health.Reason)
}

func TestMockProvider_EstimateCost_NeverZeroTokensForNonEmptyQuery(t *testing.T) {
	p := NewMockProvider("anthropic")
	est, err := p.EstimateCost(context.Background(), "q")
	require.NoError(t, err)
	assert.Greater(t, est.InputTokens, 0)
}
