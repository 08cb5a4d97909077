package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/provider"
)

// TestMain verifies fanOut's per-provider goroutines never outlive Run,
// even on the timeout and all-fail paths.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestValidator_Run_AgreeingProvidersProduceConsensus(t *testing.T) {
	answer := func(query string) string {
		return "Goroutines are lightweight threads managed by the Go runtime scheduler."
	}
	p1 := provider.NewMockProvider("openai", provider.WithAnswer(answer))
	p2 := provider.NewMockProvider("anthropic", provider.WithAnswer(answer))

	v, err := New(DefaultConfig(), []provider.Provider{p1, p2})
	require.NoError(t, err)

	session, err := v.Run(context.Background(), "how do goroutines work")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Len(t, session.ProviderResponses, 2)
	assert.GreaterOrEqual(t, session.ConsistencyScore, 0.8)
	assert.Equal(t, "Goroutines are lightweight threads managed by the Go runtime scheduler.", session.ConsensusAnswer)
	assert.Equal(t, model.ConsensusWeightedVote, session.ConsensusMethod)
	assert.Greater(t, session.ConfidenceScore, 0.0)
}

func TestValidator_Run_TooFewHealthyProviders_ReturnsInsufficientProviders(t *testing.T) {
	p1 := provider.NewMockProvider("openai")

	v, err := New(DefaultConfig(), []provider.Provider{p1})
	require.NoError(t, err)

	_, err = v.Run(context.Background(), "anything")
	require.Error(t, err)

	var vErr *Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "InsufficientProviders", vErr.Kind)
	assert.Equal(t, 2, vErr.MinRequired)
	assert.Equal(t, 1, vErr.Available)
}

func TestValidator_Run_UnhealthyProviderExcludedFromCandidates(t *testing.T) {
	p1 := provider.NewMockProvider("openai", provider.WithHealth(provider.Unhealthy("offline")))
	p2 := provider.NewMockProvider("anthropic")

	v, err := New(DefaultConfig(), []provider.Provider{p1, p2})
	require.NoError(t, err)

	_, err = v.Run(context.Background(), "anything")
	require.Error(t, err)

	var vErr *Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "InsufficientProviders", vErr.Kind)
	assert.Equal(t, 1, vErr.Available)
}

func TestValidator_Run_ContradictoryResponses_ReturnsConsistencyThresholdNotMet(t *testing.T) {
	p1 := provider.NewMockProvider("openai", provider.WithAnswer(func(string) string {
		return "Earth is 4.5 billion years old."
	}))
	p2 := provider.NewMockProvider("anthropic", provider.WithAnswer(func(string) string {
		return "Earth is 6000 years old."
	}))

	v, err := New(DefaultConfig(), []provider.Provider{p1, p2})
	require.NoError(t, err)

	_, err = v.Run(context.Background(), "how old is the earth")
	require.Error(t, err)

	var vErr *Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "ConsistencyThresholdNotMet", vErr.Kind)
	assert.Less(t, vErr.Actual, 0.8)
}

func TestValidator_Run_AllProvidersFail_ReturnsInsufficientProviders(t *testing.T) {
	p1 := provider.NewMockProvider("openai", provider.WithFailureRate(1.0))
	p2 := provider.NewMockProvider("anthropic", provider.WithFailureRate(1.0))

	v, err := New(DefaultConfig(), []provider.Provider{p1, p2})
	require.NoError(t, err)

	_, err = v.Run(context.Background(), "anything")
	require.Error(t, err)

	var vErr *Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "InsufficientProviders", vErr.Kind)
	assert.Equal(t, 0, vErr.Available)
}

func TestNew_RejectsNonParallelStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategySequential

	_, err := New(cfg, []provider.Provider{provider.NewMockProvider("openai")})
	assert.Error(t, err)
}

func TestConfig_Validate_RejectsTooFewMinProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinProviders = 1

	assert.Error(t, cfg.Validate())
}
