package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a deterministic, configurable Provider implementation
// for tests and for exercising the fallback manager and cross-validator
// without a live vendor dependency.
type MockProvider struct {
	mu sync.RWMutex

	name    string
	version string

	latency        time.Duration
	failureRate    float64
	failAfterCount int
	healthCheck    Health

	requestCount int64
	stats        UsageStats

	answerFor func(query string) string

	queryCalls []string
}

// MockOption configures a MockProvider.
type MockOption func(*MockProvider)

// WithLatency sets the simulated per-query latency.
func WithLatency(d time.Duration) MockOption {
	return func(m *MockProvider) { m.latency = d }
}

// WithFailureRate sets a per-request random failure probability in [0,1].
// Deterministic failure injection (WithFailAfter) should be preferred in
// tests that assert exact call counts; this is for soak-style exercises.
func WithFailureRate(rate float64) MockOption {
	return func(m *MockProvider) { m.failureRate = rate }
}

// WithFailAfter causes every request after the Nth to fail with
// QueryFailed.
func WithFailAfter(count int) MockOption {
	return func(m *MockProvider) { m.failAfterCount = count }
}

// WithHealth overrides the health reported by HealthCheck.
func WithHealth(h Health) MockOption {
	return func(m *MockProvider) { m.healthCheck = h }
}

// WithAnswer overrides ResearchQuery's answer derivation. Default answer
// is a deterministic echo of the query and provider name.
func WithAnswer(fn func(query string) string) MockOption {
	return func(m *MockProvider) { m.answerFor = fn }
}

// NewMockProvider builds a MockProvider named name with sensible
// zero-failure, zero-latency defaults, adjustable via MockOption.
func NewMockProvider(name string, opts ...MockOption) *MockProvider {
	m := &MockProvider{
		name:           name,
		version:        "mock-1",
		failAfterCount: -1,
		healthCheck:    Healthy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.requestCount++
	count := m.requestCount
	m.queryCalls = append(m.queryCalls, query)
	m.stats.TotalRequests++
	m.mu.Unlock()

	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			m.mu.Lock()
			m.stats.FailedRequests++
			m.mu.Unlock()
			return "", Timeout(m.name, ctx.Err().Error())
		}
	}

	if m.shouldFail(count) {
		m.mu.Lock()
		m.stats.FailedRequests++
		m.mu.Unlock()
		return "", QueryFailed(m.name, "simulated failure", "MOCK_FAILURE")
	}

	answer := fmt.Sprintf("[%s] answer for: %s", m.name, query)
	if m.answerFor != nil {
		answer = m.answerFor(query)
	}

	inputTokens := len(query) / 4
	if inputTokens == 0 {
		inputTokens = 1
	}
	outputTokens := len(answer) / 4
	if outputTokens == 0 {
		outputTokens = 1
	}

	m.mu.Lock()
	m.stats.SuccessfulRequests++
	m.stats.TotalInputTokens += int64(inputTokens)
	m.stats.TotalOutputTokens += int64(outputTokens)
	m.mu.Unlock()

	return answer, nil
}

func (m *MockProvider) Metadata() Metadata {
	return Metadata{Name: m.name, Version: m.version, Capabilities: []string{"research_query"}}
}

func (m *MockProvider) HealthCheck(ctx context.Context) Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthCheck
}

func (m *MockProvider) EstimateCost(ctx context.Context, query string) (CostEstimate, error) {
	inputTokens := len(query) / 4
	if inputTokens == 0 {
		inputTokens = 1
	}
	return CostEstimate{
		InputTokens:  inputTokens,
		OutputTokens: inputTokens * 2,
		Duration:     m.latency,
	}, nil
}

func (m *MockProvider) UsageStats() UsageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// QueryCalls returns every query passed to ResearchQuery, in order.
func (m *MockProvider) QueryCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]string, len(m.queryCalls))
	copy(calls, m.queryCalls)
	return calls
}

func (m *MockProvider) shouldFail(requestCount int64) bool {
	if m.failAfterCount >= 0 && requestCount > int64(m.failAfterCount) {
		return true
	}
	if m.failureRate <= 0 {
		return false
	}
	return pseudoRandom(requestCount) < m.failureRate
}

// pseudoRandom derives a deterministic value in [0,1) from n, so failure
// injection under WithFailureRate is reproducible across test runs
// without depending on math/rand's global seed.
func pseudoRandom(n int64) float64 {
	h := uint64(n)*2654435761 + 1
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return float64(h%1000) / 1000.0
}
