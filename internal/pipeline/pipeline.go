// Package pipeline implements the Pipeline (C9): the single entry point
// that composes the Query Normalizer, Classifier, Context Detector, Cache
// Engine, Fallback Manager, and Cross-Validator into one request
// lifecycle, and is the sole writer of a result's authoritative cache key.
// Orchestration shape is newly composed per the request lifecycle — no
// single teacher file does this, since the teacher splits the same
// responsibilities across HTTP handlers rather than a library entry point.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fortitude-core/fortitude/internal/cache"
	"github.com/fortitude-core/fortitude/internal/classify"
	detect "github.com/fortitude-core/fortitude/internal/context"
	"github.com/fortitude-core/fortitude/internal/fallback"
	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/normalize"
	"github.com/fortitude-core/fortitude/internal/quality"
	"github.com/fortitude-core/fortitude/internal/search"
	"github.com/fortitude-core/fortitude/internal/validate"
	"github.com/fortitude-core/fortitude/pkg/observability"
)

// Config tunes pipeline-wide defaults. Per-request behavior can still
// override CrossValidateByDefault via Options.CrossValidate.
type Config struct {
	CrossValidateByDefault bool
	QualityWeights         quality.Weights
}

// DefaultConfig returns fallback-only generation with the scorer's default
// weights.
func DefaultConfig() Config {
	return Config{
		CrossValidateByDefault: false,
		QualityWeights:         quality.DefaultWeights(),
	}
}

// Options carries the per-request hints process_query accepts: an
// optional audience override, optional domain/framework/tag context, and
// an optional override of whether this request should be cross-validated.
type Options struct {
	Audience     *model.AudienceLevel
	Domain       string
	Frameworks   []string
	Tags         []string
	CrossValidate *bool
}

// Pipeline is the Pipeline (C9). The Cross-Validator and Hybrid Searcher
// collaborators are optional: a Pipeline built without a Validator always
// falls back to the Fallback Manager, and one built without a Searcher
// rejects Search calls.
type Pipeline struct {
	cfg       Config
	cache     *cache.Cache
	fallback  *fallback.Manager
	validator *validate.Validator
	searcher  *search.Searcher
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// New builds a Pipeline. cache and fallback are required; validator and
// searcher may be nil when cross-validation or hybrid search are not
// wired for this deployment.
func New(
	cfg Config,
	c *cache.Cache,
	fb *fallback.Manager,
	validator *validate.Validator,
	searcher *search.Searcher,
	logger observability.Logger,
	metrics observability.MetricsClient,
) *Pipeline {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Pipeline{
		cfg:       cfg,
		cache:     c,
		fallback:  fb,
		validator: validator,
		searcher:  searcher,
		logger:    logger.WithPrefix("pipeline"),
		metrics:   metrics,
	}
}

// ProcessQuery is process_query(query, audience?, domain?) → ResearchResult
// (§4.9): normalize, classify, detect context, compute and assign the
// authoritative cache key, probe the cache, generate on miss via either
// the Fallback Manager or the Cross-Validator, populate metadata, store,
// and return.
func (p *Pipeline) ProcessQuery(ctx context.Context, query string, opts Options) (*model.ResearchResult, error) {
	start := time.Now()

	if query == "" {
		return nil, fmt.Errorf("pipeline: query must not be empty")
	}

	normalizedQuery := normalize.Query(query)
	classification := classify.Classify(normalizedQuery)
	enhanced := detect.Detect(normalizedQuery, classification.Type)

	audienceLevel := enhanced.AudienceLevel
	if opts.Audience != nil {
		audienceLevel = *opts.Audience
	}

	audienceContext := model.AudienceContext{
		Level:  audienceLevel,
		Domain: string(enhanced.TechnicalDomain),
		Format: formatFor(audienceLevel),
	}
	domainContext := model.DomainContext{
		Technology: opts.Domain,
		Frameworks: opts.Frameworks,
		Tags:       opts.Tags,
	}

	req := model.NewResearchRequest(
		query,
		normalizedQuery,
		classification.Type,
		audienceContext,
		domainContext,
		classification.Confidence,
		classification.MatchedKeywords,
		&enhanced,
	)

	key := cache.ComputeKey(req)

	if cached, found := p.probeCache(ctx, key); found {
		return cached, nil
	}

	useCrossValidation := p.cfg.CrossValidateByDefault
	if opts.CrossValidate != nil {
		useCrossValidation = *opts.CrossValidate
	}

	answer, providersUsed, providerUsed, qualityScore, crossValidated, err := p.generate(ctx, query, classification.Type, useCrossValidation)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generating answer for %q: %w", query, err)
	}

	result := &model.ResearchResult{
		Request:         req,
		ImmediateAnswer: answer,
		Metadata: model.ResultMetadata{
			CompletedAt:      time.Now(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			SourcesConsulted: providersUsed,
			QualityScore:     qualityScore,
			Tags:             opts.Tags,
			ProviderUsed:     providerUsed,
			CrossValidated:   crossValidated,
			LearningApplied:  isLearningFallback(classification),
		},
	}
	result.Metadata.SetCacheKeyOnce(key)

	if _, err := p.cache.Store(ctx, result); err != nil {
		return nil, fmt.Errorf("pipeline: storing result for key %s: %w", key, err)
	}

	p.metrics.RecordAPIOperation("pipeline", "process_query", true, time.Since(start).Seconds())
	return result, nil
}

// probeCache implements the "cache I/O error on read is treated as a miss"
// rule from §7: a retrieve error is logged and the pipeline proceeds to
// generation rather than failing the request.
func (p *Pipeline) probeCache(ctx context.Context, key string) (*model.ResearchResult, bool) {
	cached, found, err := p.cache.Retrieve(ctx, key)
	if err != nil {
		p.logger.Warn("cache retrieve error, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	return cached, found
}

func (p *Pipeline) generate(ctx context.Context, query string, researchType model.ResearchType, useCrossValidation bool) (answer string, providersUsed []string, providerUsed string, qualityScore float64, crossValidated bool, err error) {
	if useCrossValidation && p.validator != nil {
		session, sessionErr := p.validator.Run(ctx, query)
		if sessionErr != nil {
			return "", nil, "", 0, false, sessionErr
		}
		for name := range session.ProviderResponses {
			providersUsed = append(providersUsed, name)
		}
		sort.Strings(providersUsed)
		return session.ConsensusAnswer, providersUsed, "", session.ConfidenceScore, true, nil
	}

	if p.fallback == nil {
		return "", nil, "", 0, false, fmt.Errorf("no fallback manager configured")
	}

	ans, name, fbErr := p.fallback.QueryText(ctx, query, researchType)
	if fbErr != nil {
		return "", nil, "", 0, false, fbErr
	}

	score := quality.Evaluate(query, ans, p.cfg.QualityWeights).Composite
	return ans, []string{name}, name, score, false, nil
}

// isLearningFallback reports whether the Classifier fell back to its
// low-confidence Learning default (§7's "classifier empty/low-confidence
// input" row) rather than matching a vocabulary candidate.
func isLearningFallback(c classify.Result) bool {
	return c.Type == model.ResearchTypeLearning && len(c.Candidates) == 0
}

func formatFor(level model.AudienceLevel) string {
	switch level {
	case model.AudienceBeginner:
		return "step_by_step"
	case model.AudienceAdvanced:
		return "concise"
	default:
		return "balanced"
	}
}

// Search runs the Hybrid Searcher (C8) directly, for retrieval-style
// queries over prior results — orthogonal to ProcessQuery's new-answer
// generation, per §4.9.
func (p *Pipeline) Search(ctx context.Context, query string, queryEmbedding []float32, opts search.Options) ([]search.Result, error) {
	if p.searcher == nil {
		return nil, fmt.Errorf("pipeline: hybrid search not configured")
	}
	return p.searcher.Search(ctx, query, queryEmbedding, opts)
}

// IndexForSearch feeds documents into the Hybrid Searcher's keyword index,
// the hook migration tooling (out of scope for this module) would call
// after populating the Vector Store collaborator with the same documents.
func (p *Pipeline) IndexForSearch(docs []search.Document) error {
	if p.searcher == nil {
		return fmt.Errorf("pipeline: hybrid search not configured")
	}
	p.searcher.IndexDocuments(docs)
	return nil
}
