// Package validate implements the Cross-Validator (C7): fan out a query to
// multiple providers concurrently, score and compare their responses for
// consistency, and synthesize one consensus answer. Grounded on the
// teacher's semaphore-bounded concurrent fan-out shape (pkg/embedding/hybrid),
// adapted to a fixed provider set bounded by a pkg/resilience.Bulkhead sized
// to MaxProviders, and on pkg/rag/scoring/scorer.go's weighted composite
// scoring idiom, via internal/quality.
package validate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/provider"
	"github.com/fortitude-core/fortitude/internal/quality"
	"github.com/fortitude-core/fortitude/pkg/observability"
	"github.com/fortitude-core/fortitude/pkg/resilience"
)

// Strategy selects how the Cross-Validator gathers responses before
// scoring them. Only Parallel is implemented; the others are accepted by
// Config validation but rejected at Validate time.
type Strategy string

const (
	StrategyParallel      Strategy = "parallel"
	StrategySequential    Strategy = "sequential"
	StrategyEnsemble      Strategy = "ensemble"
	StrategyThresholdBased Strategy = "threshold_based"
)

// Config tunes a validation session.
type Config struct {
	Strategy                 Strategy
	MinProviders              int
	MaxProviders              int
	ConsistencyThreshold      float64
	ConsensusMethod           model.ConsensusMethod
	Timeout                   time.Duration
	ProviderTimeout           time.Duration
	EnableQualityEnhancement  bool
	EnableBiasDetection       bool
	QualityWeights            quality.Weights
}

// DefaultConfig returns the spec's documented defaults: Parallel
// strategy, 2-3 providers, 0.8 consistency threshold, WeightedVote
// consensus.
func DefaultConfig() Config {
	return Config{
		Strategy:             StrategyParallel,
		MinProviders:         2,
		MaxProviders:         3,
		ConsistencyThreshold: 0.8,
		ConsensusMethod:      model.ConsensusWeightedVote,
		Timeout:              30 * time.Second,
		ProviderTimeout:      10 * time.Second,
		QualityWeights:       quality.DefaultWeights(),
	}
}

// Validate rejects configurations forbidden by §4.7: min_providers < 2,
// max < min, out-of-range thresholds, and a zero timeout.
func (c Config) Validate() error {
	if c.MinProviders < 2 {
		return fmt.Errorf("validate: min_providers must be >= 2, got %d", c.MinProviders)
	}
	if c.MaxProviders < c.MinProviders {
		return fmt.Errorf("validate: max_providers (%d) must be >= min_providers (%d)", c.MaxProviders, c.MinProviders)
	}
	if c.ConsistencyThreshold < 0 || c.ConsistencyThreshold > 1 {
		return fmt.Errorf("validate: consistency_threshold must be in [0,1], got %f", c.ConsistencyThreshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("validate: timeout must be positive")
	}
	return nil
}

// Error is the Cross-Validator's typed failure surface, each variant
// named per §7's error taxonomy.
type Error struct {
	Kind         string
	MinRequired  int
	Available    int
	Actual       float64
	Required     float64
}

func (e *Error) Error() string {
	switch e.Kind {
	case "InsufficientProviders":
		return fmt.Sprintf("cross-validation: insufficient providers (need %d, have %d)", e.MinRequired, e.Available)
	case "ConsistencyThresholdNotMet":
		return fmt.Sprintf("cross-validation: consistency %.3f below threshold %.3f", e.Actual, e.Required)
	case "ValidationTimeout":
		return "cross-validation: session timed out"
	case "QualityScorerUnavailable":
		return "cross-validation: quality scorer unavailable"
	default:
		return "cross-validation: " + e.Kind
	}
}

func errInsufficientProviders(min, available int) *Error {
	return &Error{Kind: "InsufficientProviders", MinRequired: min, Available: available}
}

func errConsistencyThresholdNotMet(actual, required float64) *Error {
	return &Error{Kind: "ConsistencyThresholdNotMet", Actual: actual, Required: required}
}

// providerResult pairs a successful response with its elapsed time and
// scored quality, or carries the provider's error string for diagnostics.
type providerResult struct {
	provider string
	response string
	elapsed  time.Duration
	quality  quality.Result
	err      string
}

// Validator runs cross-validation sessions against a fixed provider pool.
type Validator struct {
	cfg       Config
	providers []provider.Provider

	// bulkhead bounds fanOut's concurrent provider calls to MaxProviders.
	// Since candidates are already capped at MaxProviders before fanOut
	// runs, every call acquires its slot immediately; the bulkhead exists
	// to make that bound explicit and to carry its call/rejection metrics.
	// It never queues; it rejects calls only through the provider_fanout
	// rate limit it inherits (60 calls per minute per Validator).
	bulkhead *resilience.Bulkhead
}

// New builds a Validator over providers, after validating cfg.
func New(cfg Config, providers []provider.Provider) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy != StrategyParallel {
		return nil, fmt.Errorf("validate: strategy %q not implemented", cfg.Strategy)
	}
	// Start from the package-wide provider_fanout pool config (timeout,
	// rate limit) and override the concurrency cap, which has to track this
	// Validator's own MaxProviders, and the queue depth: with no queue the
	// Bulkhead starts no background queue goroutine that would outlive Run.
	poolCfg := resilience.DefaultBulkheadConfigs["provider_fanout"]
	poolCfg.MaxConcurrentCalls = cfg.MaxProviders
	poolCfg.MaxQueueDepth = 0
	manager := resilience.NewBulkheadManager(map[string]resilience.BulkheadConfig{
		"provider_fanout": poolCfg,
	}, observability.NewNoopLogger(), observability.NewNoopMetricsClient())
	bulkhead := manager.GetBulkhead("provider_fanout")
	return &Validator{cfg: cfg, providers: providers, bulkhead: bulkhead}, nil
}

// Run executes the Parallel strategy end to end (§4.7): fan out, score,
// check consistency, synthesize consensus.
func (v *Validator) Run(ctx context.Context, query string) (*model.ValidationSession, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	candidates := v.healthyProviders(sessionCtx)
	if len(candidates) < v.cfg.MinProviders {
		return nil, errInsufficientProviders(v.cfg.MinProviders, len(candidates))
	}
	if len(candidates) > v.cfg.MaxProviders {
		candidates = candidates[:v.cfg.MaxProviders]
	}

	results := v.fanOut(sessionCtx, candidates, query)
	if sessionCtx.Err() != nil {
		return nil, &Error{Kind: "ValidationTimeout"}
	}

	successes := make([]providerResult, 0, len(results))
	for _, r := range results {
		if r.err == "" {
			successes = append(successes, r)
		}
	}
	if len(successes) < v.cfg.MinProviders {
		return nil, errInsufficientProviders(v.cfg.MinProviders, len(successes))
	}

	consistency := AnalyzeConsistency(query, successes)
	if consistency.OverallConsistency < v.cfg.ConsistencyThreshold {
		return nil, errConsistencyThresholdNotMet(consistency.OverallConsistency, v.cfg.ConsistencyThreshold)
	}

	consensusAnswer, confidence := GenerateConsensus(successes, v.cfg.ConsensusMethod)

	session := &model.ValidationSession{
		ID:                uuid.NewString(),
		ProviderResponses: make(map[string]model.ProviderResponse, len(successes)),
		ConsistencyScore:  consistency.OverallConsistency,
		ConsensusAnswer:   consensusAnswer,
		ConsensusMethod:   v.cfg.ConsensusMethod,
		ConfidenceScore:   confidence,
		StartedAt:         time.Now().Add(-v.elapsedTotal(results)),
		CompletedAt:       time.Now(),
	}
	for _, r := range successes {
		session.ProviderResponses[r.provider] = model.ProviderResponse{
			Response:     r.response,
			QualityScore: r.quality.Composite,
			ResponseTime: r.elapsed,
		}
	}
	return session, nil
}

func (v *Validator) elapsedTotal(results []providerResult) time.Duration {
	var max time.Duration
	for _, r := range results {
		if r.elapsed > max {
			max = r.elapsed
		}
	}
	return max
}

func (v *Validator) healthyProviders(ctx context.Context) []provider.Provider {
	healthy := make([]provider.Provider, 0, len(v.providers))
	for _, p := range v.providers {
		if p.HealthCheck(ctx).State != provider.HealthUnhealthy {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

// fanOut issues research_query concurrently against candidates, each
// bounded by ProviderTimeout and by the Bulkhead's concurrency slots, and
// collects every outcome — this is a WaitGroup rather than an errgroup
// specifically because a provider failure must not cancel its siblings
// (§4.7 step 3: "discard failures but keep their error strings").
func (v *Validator) fanOut(ctx context.Context, candidates []provider.Provider, query string) []providerResult {
	results := make([]providerResult, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, v.cfg.ProviderTimeout)
			defer cancel()

			start := time.Now()
			raw, err := v.bulkhead.Execute(callCtx, func(execCtx context.Context) (interface{}, error) {
				return p.ResearchQuery(execCtx, query)
			})
			elapsed := time.Since(start)

			if err != nil {
				results[i] = providerResult{provider: p.Name(), elapsed: elapsed, err: err.Error()}
				return
			}
			response, _ := raw.(string)
			results[i] = providerResult{
				provider: p.Name(),
				response: response,
				elapsed:  elapsed,
				quality:  quality.Evaluate(query, response, v.cfg.QualityWeights),
			}
		}(i, p)
	}
	wg.Wait()
	return results
}

// normalizedPrefix returns the first n case-folded words of text, used by
// MajorityVote to group similar responses.
func normalizedPrefix(text string, n int) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
