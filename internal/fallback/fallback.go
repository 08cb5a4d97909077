// Package fallback implements the Fallback Manager (C6): provider
// selection, timeout-bounded failover, and background health monitoring,
// generalized from the teacher's circuit-breaker state machine to the
// spec's three-state Healthy/Degraded/Unhealthy provider health model.
package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/provider"
	"github.com/fortitude-core/fortitude/pkg/observability"
	"github.com/fortitude-core/fortitude/pkg/resilience"
	"github.com/fortitude-core/fortitude/pkg/retry"
)

// Config tunes failover and health-monitoring behavior.
type Config struct {
	Strategy             model.SelectionStrategy
	MaxFailoverAttempts  int
	EnableFailover       bool
	ProviderTimeout      time.Duration
	HealthCheckInterval  time.Duration
	MinQualityThreshold  float64
	CostOptimizationBand float64

	// ResearchTypePreferences backs SelectionResearchTypeOptimized: an
	// ordered provider-name preference list per research type.
	ResearchTypePreferences map[model.ResearchType][]string
}

// DefaultConfig returns sane defaults: Balanced selection, 2 failover
// attempts, a 30s per-provider timeout, and a 30s health probe interval.
func DefaultConfig() Config {
	return Config{
		Strategy:             model.SelectionBalanced,
		MaxFailoverAttempts:  2,
		EnableFailover:       true,
		ProviderTimeout:      30 * time.Second,
		HealthCheckInterval:  30 * time.Second,
		MinQualityThreshold:  0.5,
		CostOptimizationBand: 0.1,
	}
}

type providerEntry struct {
	p           provider.Provider
	health      provider.HealthState
	reason      string
	performance model.ProviderPerformance
	cost        float64 // cached estimate, updated by CostOptimized selection

	consecutiveSelections int // tracked by Balanced's diversification rule
}

// Manager selects among registered providers and drives the failover
// protocol described in §4.6.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]*providerEntry
	order   []string // insertion order, for round-robin and tie-breaking

	rrCursor int

	logger  observability.Logger
	metrics observability.MetricsClient

	// backoff spaces out re-selection attempts within one request's
	// failover loop when providers are failing transiently; it governs
	// only the delay between attempts, not the attempt-count semantics
	// of §4.6's failover protocol.
	backoff retry.Policy

	// limiters caps each provider's request rate independently of its
	// health state, so a provider staying Healthy under §4.6's thresholds
	// can still be protected from a burst of rapid failover retries.
	limiters *resilience.RateLimiterManager

	stopMonitor context.CancelFunc
}

// NewManager builds a Manager with no providers registered.
func NewManager(cfg Config, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Manager{
		cfg:     cfg,
		entries: make(map[string]*providerEntry),
		logger:  logger.WithPrefix("fallback"),
		metrics: metrics,
		backoff: retry.NewExponentialBackoff(retry.Config{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			MaxRetries:      cfg.MaxFailoverAttempts + 1,
		}),
		limiters: resilience.NewRateLimiterManager(nil),
	}
}

// Register adds a provider to the pool, initially Healthy.
func (m *Manager) Register(p provider.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := p.Name()
	if _, exists := m.entries[name]; exists {
		return
	}
	m.entries[name] = &providerEntry{p: p, health: provider.HealthHealthy}
	m.order = append(m.order, name)
}

// ErrServiceUnavailable is returned when no eligible provider exists at
// selection time.
var ErrServiceUnavailable = provider.ServiceUnavailable("manager", "no eligible provider available", nil)

// Query runs the failover protocol (§4.6): select a provider excluding
// already-tried and Unhealthy providers, invoke ResearchQuery under
// ProviderTimeout, and on failure retry with the next candidate up to
// MaxFailoverAttempts.
func (m *Manager) Query(ctx context.Context, researchType model.ResearchType) (string, string, error) {
	return m.query(ctx, "", researchType)
}

// QueryText is the primary entry point: it carries the query text through
// to the selected provider.
func (m *Manager) QueryText(ctx context.Context, query string, researchType model.ResearchType) (string, string, error) {
	return m.query(ctx, query, researchType)
}

func (m *Manager) query(ctx context.Context, query string, researchType model.ResearchType) (string, string, error) {
	tried := make(map[string]struct{})
	var lastErr error

	for attempt := 0; ; attempt++ {
		name, p, ok := m.selectProvider(researchType, tried)
		if !ok {
			if lastErr != nil {
				return "", "", lastErr
			}
			return "", "", ErrServiceUnavailable
		}

		if limiter := m.limiters.GetRateLimiter(name); !limiter.Allow() {
			lastErr = provider.RateLimitExceeded(name, 0, 0)
			tried[name] = struct{}{}
			m.metrics.RecordAPIOperation(name, "research_query", false, 0)
			if !m.cfg.EnableFailover || len(tried) >= m.cfg.MaxFailoverAttempts {
				return "", "", lastErr
			}
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, m.cfg.ProviderTimeout)
		start := time.Now()
		answer, err := p.ResearchQuery(queryCtx, query)
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			m.recordSuccess(name, elapsed)
			m.metrics.RecordAPIOperation(name, "research_query", true, elapsed.Seconds())
			return answer, name, nil
		}

		if queryCtx.Err() != nil && ctx.Err() == nil {
			err = provider.Timeout(name, "provider timed out")
		}

		m.recordFailure(name)
		m.metrics.RecordAPIOperation(name, "research_query", false, elapsed.Seconds())
		lastErr = err
		tried[name] = struct{}{}

		if !m.cfg.EnableFailover || len(tried) >= m.cfg.MaxFailoverAttempts {
			return "", "", lastErr
		}

		// §4.6: Auth/InvalidResponse are fatal for that provider within
		// the request but still fail over to the next candidate — only
		// transient errors (Timeout, RateLimitExceeded, ServiceUnavailable)
		// justify the backoff pause; spacing out a retry after a fatal
		// error just delays reaching a provider that might still work.
		if perr, ok := err.(*provider.Error); !ok || perr.Retryable() {
			if delay := m.backoff.NextDelay(attempt + 1); delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return "", "", lastErr
				}
			}
		}
	}
}

// RecordQuality feeds a downstream quality score (from C7's Quality
// Scorer) back into a provider's rolling performance window.
func (m *Manager) RecordQuality(name string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok {
		return
	}
	entry.performance.QualityScores = append(entry.performance.QualityScores, score)
	if len(entry.performance.QualityScores) > 50 {
		entry.performance.QualityScores = entry.performance.QualityScores[len(entry.performance.QualityScores)-50:]
	}
}

func (m *Manager) recordSuccess(name string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok {
		return
	}
	now := time.Now()
	entry.performance.TotalRequests++
	entry.performance.SuccessfulRequests++
	entry.performance.ConsecutiveFailures = 0
	entry.performance.TotalLatency += latency
	entry.performance.LastSuccess = &now
	m.maybeRecoverLocked(entry)
}

func (m *Manager) recordFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok {
		return
	}
	now := time.Now()
	entry.performance.TotalRequests++
	entry.performance.FailedRequests++
	entry.performance.ConsecutiveFailures++
	entry.performance.LastFailure = &now
	m.transitionOnFailureLocked(name, entry)
}

// transitionOnFailureLocked applies §4.6's health state machine:
// Healthy -> Degraded at consecutive_failures >= 3 OR success_rate < 0.7;
// Degraded -> Unhealthy at >= 5 OR < 0.3. Called with m.mu held.
func (m *Manager) transitionOnFailureLocked(name string, entry *providerEntry) {
	successRate := entry.performance.SuccessRate()
	consecutive := entry.performance.ConsecutiveFailures

	prev := entry.health
	switch entry.health {
	case provider.HealthHealthy:
		if consecutive >= 3 || successRate < 0.7 {
			entry.health = provider.HealthDegraded
			entry.reason = "consecutive failures or success rate below healthy threshold"
		}
	case provider.HealthDegraded:
		if consecutive >= 5 || successRate < 0.3 {
			entry.health = provider.HealthUnhealthy
			entry.reason = "consecutive failures or success rate below degraded threshold"
		}
	}
	if prev != entry.health {
		m.logger.Warn("provider health transition", map[string]interface{}{
			"provider": name, "from": string(prev), "to": string(entry.health),
		})
		m.metrics.RecordGauge("provider_health_state", healthGaugeValue(entry.health), map[string]string{"provider": name})
	}
}

// maybeRecoverLocked returns a provider to Healthy on a successful probe.
// Query successes count as a probe for this purpose. Recovery is
// immediate: no cooldown period is enforced before the transition.
func (m *Manager) maybeRecoverLocked(entry *providerEntry) {
	if entry.health != provider.HealthHealthy {
		entry.health = provider.HealthHealthy
		entry.reason = ""
	}
}

func healthGaugeValue(h provider.HealthState) float64 {
	switch h {
	case provider.HealthHealthy:
		return 1
	case provider.HealthDegraded:
		return 0.5
	default:
		return 0
	}
}

// Health returns the currently tracked health of a registered provider.
func (m *Manager) Health(name string) (provider.Health, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[name]
	if !ok {
		return provider.Health{}, false
	}
	return provider.Health{State: entry.health, Reason: entry.reason}, true
}

// SetCost records a provider's current per-query cost estimate, consulted
// by the CostOptimized selection strategy. Callers typically derive this
// from a prior EstimateCost call.
func (m *Manager) SetCost(name string, costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[name]; ok {
		entry.cost = costUSD
	}
}

// Performance returns a copy of a provider's performance statistics.
func (m *Manager) Performance(name string) (model.ProviderPerformance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[name]
	if !ok {
		return model.ProviderPerformance{}, false
	}
	return entry.performance, true
}

// StartHealthMonitor launches a background goroutine that probes every
// registered provider at cfg.HealthCheckInterval until ctx is cancelled or
// Stop is called. Only one monitor may run at a time per Manager.
func (m *Manager) StartHealthMonitor(ctx context.Context) {
	m.mu.Lock()
	if m.stopMonitor != nil {
		m.mu.Unlock()
		return
	}
	monitorCtx, cancel := context.WithCancel(ctx)
	m.stopMonitor = cancel
	m.mu.Unlock()

	interval := m.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				m.probeAll(monitorCtx)
			}
		}
	}()
}

// Stop cancels the background health monitor, if running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
	}
}

func (m *Manager) probeAll(ctx context.Context) {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		entry, ok := m.entries[name]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProviderTimeout)
		health := entry.p.HealthCheck(probeCtx)
		cancel()

		m.mu.Lock()
		if health.State == provider.HealthHealthy {
			m.maybeRecoverLocked(entry)
		} else {
			entry.health = health.State
			entry.reason = health.Reason
		}
		m.mu.Unlock()
	}
}
