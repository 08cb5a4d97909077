package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/provider"
	"github.com/fortitude-core/fortitude/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain verifies the background health-monitor goroutine started by
// StartHealthMonitor never outlives Stop/context cancellation.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	return NewManager(cfg, observability.NewNoopLogger(), observability.NewNoopMetricsClient())
}

func TestManager_Query_ReturnsAnswerFromHealthyProvider(t *testing.T) {
	cfg := DefaultConfig()
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("anthropic"))

	answer, name, err := m.QueryText(context.Background(), "how do channels work", model.ResearchTypeImplementation)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
	assert.Contains(t, answer, "anthropic")
}

func TestManager_Query_FailsOverToSecondProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailoverAttempts = 2
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("flaky", provider.WithFailAfter(0)))
	m.Register(provider.NewMockProvider("reliable"))

	_, name, err := m.QueryText(context.Background(), "debug a deadlock", model.ResearchTypeTroubleshooting)
	require.NoError(t, err)
	assert.Equal(t, "reliable", name)
}

func TestManager_Query_NoEligibleProvider_ReturnsServiceUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	m := newTestManager(t, cfg)

	_, _, err := m.QueryText(context.Background(), "anything", model.ResearchTypeLearning)
	require.Error(t, err)
	var provErr *provider.Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, provider.CodeServiceUnavailable, provErr.Code)
}

func TestManager_HealthTransitions_DegradedThenUnhealthy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFailover = false
	m := newTestManager(t, cfg)
	// Succeeds 3 times, then fails every call after, so success_rate
	// degrades gradually instead of starting at 0 (a provider that never
	// once succeeds collapses straight past Degraded into Unhealthy).
	m.Register(provider.NewMockProvider("bad", provider.WithFailAfter(3)))

	for i := 0; i < 5; i++ {
		_, _, _ = m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
	}
	health, ok := m.Health("bad")
	require.True(t, ok)
	assert.Equal(t, provider.HealthDegraded, health.State)

	for i := 0; i < 3; i++ {
		_, _, _ = m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
	}
	health, ok = m.Health("bad")
	require.True(t, ok)
	assert.Equal(t, provider.HealthUnhealthy, health.State)
}

func TestManager_RoundRobin_DistributesWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = model.SelectionRoundRobin
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("a"))
	m.Register(provider.NewMockProvider("b"))
	m.Register(provider.NewMockProvider("c"))

	counts := map[string]int{}
	const total = 30
	for i := 0; i < total; i++ {
		_, name, err := m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
		require.NoError(t, err)
		counts[name]++
	}

	expected := total / 3
	for name, count := range counts {
		assert.InDelta(t, expected, count, 2, "provider %s got %d selections", name, count)
	}
}

func TestManager_Balanced_ExcludesUnhealthyProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = model.SelectionBalanced
	cfg.EnableFailover = false
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("dead", provider.WithFailAfter(0)))

	// Drive "dead" to Unhealthy before "alive" ever joins the pool, since
	// Balanced would otherwise never pick the lower-scoring provider to
	// begin with.
	for i := 0; i < 3; i++ {
		_, _, _ = m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
	}
	health, _ := m.Health("dead")
	require.Equal(t, provider.HealthUnhealthy, health.State)

	m.Register(provider.NewMockProvider("alive"))

	_, name, err := m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
	require.NoError(t, err)
	assert.Equal(t, "alive", name)
}

func TestHealthScore_NeutralDefaultWithNoSamples(t *testing.T) {
	score := healthScore(model.ProviderPerformance{}, 1.0)
	assert.InDelta(t, 0.5*0.5+0.3*1+0.2*0.5, score, 0.001)
}

func TestManager_ResearchTypeOptimized_FallsBackToBalancedOnMiss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = model.SelectionResearchTypeOptimized
	cfg.ResearchTypePreferences = map[model.ResearchType][]string{
		model.ResearchTypeDecision: {"specialist"},
	}
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("generalist"))

	_, name, err := m.QueryText(context.Background(), "q", model.ResearchTypeLearning)
	require.NoError(t, err)
	assert.Equal(t, "generalist", name)
}

func TestManager_StartStopHealthMonitor_NoPanic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond
	m := newTestManager(t, cfg)
	m.Register(provider.NewMockProvider("p"))

	ctx, cancel := context.WithCancel(context.Background())
	m.StartHealthMonitor(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()
}
