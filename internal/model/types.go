// Package model defines the data types shared across the research
// orchestration core: requests, results, cache entries, vector documents,
// provider performance statistics, and validation sessions.
package model

import (
	"encoding/json"
	"time"
)

// ResearchType is the primary classification axis for a query.
type ResearchType string

const (
	ResearchTypeLearning        ResearchType = "learning"
	ResearchTypeImplementation  ResearchType = "implementation"
	ResearchTypeTroubleshooting ResearchType = "troubleshooting"
	ResearchTypeDecision        ResearchType = "decision"
	ResearchTypeValidation      ResearchType = "validation"
)

// AudienceLevel estimates the sophistication of the requester.
type AudienceLevel string

const (
	AudienceBeginner     AudienceLevel = "beginner"
	AudienceIntermediate AudienceLevel = "intermediate"
	AudienceAdvanced     AudienceLevel = "advanced"
)

// TechnicalDomain is an open-ended but enumerated technology area.
type TechnicalDomain string

const (
	DomainWeb      TechnicalDomain = "web"
	DomainSystems  TechnicalDomain = "systems"
	DomainData     TechnicalDomain = "data"
	DomainMobile   TechnicalDomain = "mobile"
	DomainDevOps   TechnicalDomain = "devops"
	DomainSecurity TechnicalDomain = "security"
	DomainGeneral  TechnicalDomain = "general"
)

// UrgencyLevel estimates how time-pressured the request is.
type UrgencyLevel string

const (
	UrgencyExploratory UrgencyLevel = "exploratory"
	UrgencyPlanned     UrgencyLevel = "planned"
	UrgencyUrgent      UrgencyLevel = "urgent"
)

// EvidenceType classifies a piece of supporting evidence.
type EvidenceType string

const (
	EvidenceDocumentation EvidenceType = "documentation"
	EvidenceExample       EvidenceType = "example"
	EvidenceBenchmark     EvidenceType = "benchmark"
	EvidenceCommunity     EvidenceType = "community"
)

// ConfidenceBand discretizes a [0,1] confidence for stable cache keys.
type ConfidenceBand string

const (
	ConfidenceLow       ConfidenceBand = "low"
	ConfidenceMedium    ConfidenceBand = "medium"
	ConfidenceHigh      ConfidenceBand = "high"
	ConfidenceVeryHigh  ConfidenceBand = "very_high"
)

// ConfidenceBandOf maps a raw confidence into its stable band, per the
// 0.3/0.6/0.8 thresholds.
func ConfidenceBandOf(x float64) ConfidenceBand {
	switch {
	case x >= 0.8:
		return ConfidenceVeryHigh
	case x >= 0.6:
		return ConfidenceHigh
	case x >= 0.3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ProcessingTimeCategory discretizes a processing duration for stable
// reporting, per the 100/500/2000ms thresholds.
func ProcessingTimeCategory(ms int64) string {
	switch {
	case ms < 100:
		return "fast"
	case ms < 500:
		return "medium"
	case ms < 2000:
		return "slow"
	default:
		return "very_slow"
	}
}

// AudienceContext captures how the answer should be pitched.
type AudienceContext struct {
	Level  AudienceLevel `json:"level"`
	Domain string        `json:"domain"`
	Format string        `json:"format"`
}

// DomainContext captures the technical setting of the query.
type DomainContext struct {
	Technology  string   `json:"technology"`
	ProjectType string   `json:"project_type"`
	Frameworks  []string `json:"frameworks"`
	Tags        []string `json:"tags"`
}

// DimensionResult is a per-dimension classification outcome (used by the
// Context Detector for audience/domain/urgency).
type DimensionResult struct {
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
	Reasoning       string   `json:"reasoning"`
}

// EnhancedClassification is C3's full output, attached to a request when
// context detection ran.
type EnhancedClassification struct {
	AudienceLevel     AudienceLevel   `json:"audience_level"`
	TechnicalDomain   TechnicalDomain `json:"technical_domain"`
	UrgencyLevel      UrgencyLevel    `json:"urgency_level"`
	OverallConfidence float64         `json:"overall_confidence"`
	AudienceResult    DimensionResult `json:"audience_result"`
	DomainResult      DimensionResult `json:"domain_result"`
	UrgencyResult     DimensionResult `json:"urgency_result"`
	ProcessingTimeMs  int64           `json:"processing_time_ms"`
	FallbackUsed      bool            `json:"fallback_used"`
}

// ResearchRequest is immutable once constructed; see NewResearchRequest.
type ResearchRequest struct {
	originalQuery            string
	normalizedQuery           string
	researchType              ResearchType
	audienceContext           AudienceContext
	domainContext             DomainContext
	classificationConfidence  float64
	matchedKeywords           []string
	enhancedClassification    *EnhancedClassification
}

// NewResearchRequest builds an immutable ResearchRequest. Callers supply
// every field up front; there is no mutation after construction.
func NewResearchRequest(
	originalQuery, normalizedQuery string,
	researchType ResearchType,
	audience AudienceContext,
	domain DomainContext,
	classificationConfidence float64,
	matchedKeywords []string,
	enhanced *EnhancedClassification,
) ResearchRequest {
	return ResearchRequest{
		originalQuery:            originalQuery,
		normalizedQuery:          normalizedQuery,
		researchType:             researchType,
		audienceContext:          audience,
		domainContext:            domain,
		classificationConfidence: classificationConfidence,
		matchedKeywords:          append([]string(nil), matchedKeywords...),
		enhancedClassification:   enhanced,
	}
}

func (r ResearchRequest) OriginalQuery() string        { return r.originalQuery }
func (r ResearchRequest) NormalizedQuery() string      { return r.normalizedQuery }
func (r ResearchRequest) ResearchType() ResearchType   { return r.researchType }
func (r ResearchRequest) AudienceContext() AudienceContext { return r.audienceContext }
func (r ResearchRequest) DomainContext() DomainContext { return r.domainContext }
func (r ResearchRequest) ClassificationConfidence() float64 { return r.classificationConfidence }
func (r ResearchRequest) MatchedKeywords() []string {
	return append([]string(nil), r.matchedKeywords...)
}
func (r ResearchRequest) EnhancedClassification() *EnhancedClassification {
	return r.enhancedClassification
}

// researchRequestWire is the JSON-visible shape of ResearchRequest. The type
// itself keeps all fields private to enforce immutability in Go; this wire
// struct is how it crosses the cache's JSON boundary without exposing
// mutable accessors to callers.
type researchRequestWire struct {
	OriginalQuery            string                  `json:"original_query"`
	NormalizedQuery          string                  `json:"normalized_query"`
	ResearchType             ResearchType             `json:"research_type"`
	AudienceContext          AudienceContext          `json:"audience_context"`
	DomainContext            DomainContext            `json:"domain_context"`
	ClassificationConfidence float64                  `json:"classification_confidence"`
	MatchedKeywords          []string                 `json:"matched_keywords"`
	EnhancedClassification   *EnhancedClassification  `json:"enhanced_classification,omitempty"`
}

func (r ResearchRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(researchRequestWire{
		OriginalQuery:            r.originalQuery,
		NormalizedQuery:          r.normalizedQuery,
		ResearchType:             r.researchType,
		AudienceContext:          r.audienceContext,
		DomainContext:            r.domainContext,
		ClassificationConfidence: r.classificationConfidence,
		MatchedKeywords:          r.matchedKeywords,
		EnhancedClassification:   r.enhancedClassification,
	})
}

func (r *ResearchRequest) UnmarshalJSON(data []byte) error {
	var wire researchRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = NewResearchRequest(
		wire.OriginalQuery,
		wire.NormalizedQuery,
		wire.ResearchType,
		wire.AudienceContext,
		wire.DomainContext,
		wire.ClassificationConfidence,
		wire.MatchedKeywords,
		wire.EnhancedClassification,
	)
	return nil
}

// SupportingEvidence backs a claim made in immediate_answer.
type SupportingEvidence struct {
	Source       string       `json:"source"`
	Content      string       `json:"content"`
	Relevance    float64      `json:"relevance"`
	EvidenceType EvidenceType `json:"evidence_type"`
}

// ImplementationDetail is a concrete, actionable step attached to a result.
type ImplementationDetail struct {
	Category      string   `json:"category"`
	Content       string   `json:"content"`
	Priority      int      `json:"priority"`
	Prerequisites []string `json:"prerequisites"`
}

// ResultMetadata carries everything about a ResearchResult that isn't the
// answer itself. CacheKey is the single authoritative identity of the
// result and may be set exactly once, by the Pipeline.
type ResultMetadata struct {
	CompletedAt       time.Time `json:"completed_at"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	SourcesConsulted  []string  `json:"sources_consulted"`
	QualityScore      float64   `json:"quality_score"`
	Tags              []string  `json:"tags"`
	ProviderUsed      string    `json:"provider_used,omitempty"`
	CrossValidated    bool      `json:"cross_validated"`
	LearningApplied   bool      `json:"learning_applied"`

	cacheKey string
	keySet   bool
}

// CacheKey returns the authoritative cache key, or "" if unset.
func (m ResultMetadata) CacheKey() string { return m.cacheKey }

// SetCacheKeyOnce assigns the authoritative cache key. It panics if called
// a second time with a different value, enforcing the "set exactly once by
// C9" invariant at the type level rather than by convention.
func (m *ResultMetadata) SetCacheKeyOnce(key string) {
	if m.keySet && m.cacheKey != key {
		panic("model: ResultMetadata.cacheKey already set to a different value")
	}
	m.cacheKey = key
	m.keySet = true
}

// resultMetadataWire carries cacheKey/keySet across JSON, which the plain
// struct tags on ResultMetadata can't reach since those fields are
// unexported.
type resultMetadataWire struct {
	CompletedAt      time.Time `json:"completed_at"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	SourcesConsulted []string  `json:"sources_consulted"`
	QualityScore     float64   `json:"quality_score"`
	Tags             []string  `json:"tags"`
	ProviderUsed     string    `json:"provider_used,omitempty"`
	CrossValidated   bool      `json:"cross_validated"`
	LearningApplied  bool      `json:"learning_applied"`
	CacheKey         string    `json:"cache_key,omitempty"`
	CacheKeySet      bool      `json:"cache_key_set"`
}

func (m ResultMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultMetadataWire{
		CompletedAt:      m.CompletedAt,
		ProcessingTimeMs: m.ProcessingTimeMs,
		SourcesConsulted: m.SourcesConsulted,
		QualityScore:     m.QualityScore,
		Tags:             m.Tags,
		ProviderUsed:     m.ProviderUsed,
		CrossValidated:   m.CrossValidated,
		LearningApplied:  m.LearningApplied,
		CacheKey:         m.cacheKey,
		CacheKeySet:      m.keySet,
	})
}

func (m *ResultMetadata) UnmarshalJSON(data []byte) error {
	var wire resultMetadataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.CompletedAt = wire.CompletedAt
	m.ProcessingTimeMs = wire.ProcessingTimeMs
	m.SourcesConsulted = wire.SourcesConsulted
	m.QualityScore = wire.QualityScore
	m.Tags = wire.Tags
	m.ProviderUsed = wire.ProviderUsed
	m.CrossValidated = wire.CrossValidated
	m.LearningApplied = wire.LearningApplied
	m.cacheKey = wire.CacheKey
	m.keySet = wire.CacheKeySet
	return nil
}

// ResearchResult is the synthesized answer to a ResearchRequest.
type ResearchResult struct {
	Request              ResearchRequest        `json:"request"`
	ImmediateAnswer      string                 `json:"immediate_answer"`
	SupportingEvidence   []SupportingEvidence   `json:"supporting_evidence"`
	ImplementationDetail []ImplementationDetail `json:"implementation_details"`
	Metadata             ResultMetadata         `json:"metadata"`
}

// CacheEntry is the in-memory index's record for one on-disk result file.
type CacheEntry struct {
	Key          string       `json:"key"`
	FilePath     string       `json:"file_path"`
	ResearchType ResearchType `json:"research_type"`
	OriginalQuery string      `json:"original_query"`
	SizeBytes    int64        `json:"size_bytes"`
	ContentHash  string       `json:"content_hash"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// IsExpired reports whether the entry has passed its TTL as of now.
func (e CacheEntry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// VectorDocumentMetadata carries optional descriptive fields for indexing
// and filtering.
type VectorDocumentMetadata struct {
	ResearchType ResearchType           `json:"research_type,omitempty"`
	ContentType  string                 `json:"content_type"`
	QualityScore *float64               `json:"quality_score,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
}

// VectorDocument is owned exclusively by the vector storage layer; the
// Hybrid Searcher only ever holds read-only references to it.
type VectorDocument struct {
	ID        string                  `json:"id"`
	Content   string                  `json:"content"`
	Embedding []float32               `json:"embedding"`
	Metadata  VectorDocumentMetadata  `json:"metadata"`
	StoredAt  time.Time               `json:"stored_at"`
}

// ProviderPerformance tracks outcomes for one provider. The request
// counters and TotalLatency are cumulative since registration; WindowSize
// is not consulted by any of the derived statistics below.
type ProviderPerformance struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	ConsecutiveFailures int
	TotalLatency        time.Duration
	QualityScores       []float64
	LastSuccess         *time.Time
	LastFailure         *time.Time
	WindowSize          int
}

// SuccessRate returns successful/total, or 0 when there have been no requests.
func (p ProviderPerformance) SuccessRate() float64 {
	if p.TotalRequests == 0 {
		return 0
	}
	return float64(p.SuccessfulRequests) / float64(p.TotalRequests)
}

// AverageLatency returns the mean observed latency, or 0 with no requests.
func (p ProviderPerformance) AverageLatency() time.Duration {
	if p.TotalRequests == 0 {
		return 0
	}
	return p.TotalLatency / time.Duration(p.TotalRequests)
}

// MeanQualityScore returns the mean of recorded quality scores, or 0.5
// (neutral) when none have been recorded yet.
func (p ProviderPerformance) MeanQualityScore() float64 {
	if len(p.QualityScores) == 0 {
		return 0.5
	}
	var sum float64
	for _, q := range p.QualityScores {
		sum += q
	}
	return sum / float64(len(p.QualityScores))
}

// ConsensusMethod names a strategy for synthesizing one answer from many.
type ConsensusMethod string

const (
	ConsensusWeightedVote  ConsensusMethod = "weighted_vote"
	ConsensusMajorityVote  ConsensusMethod = "majority_vote"
	ConsensusBestQuality   ConsensusMethod = "best_quality"
	ConsensusEnsembleMerge ConsensusMethod = "ensemble_merge"
)

// SelectionStrategy names a Fallback Manager provider-selection policy.
type SelectionStrategy string

const (
	SelectionRoundRobin           SelectionStrategy = "round_robin"
	SelectionLowestLatency        SelectionStrategy = "lowest_latency"
	SelectionHighestSuccessRate   SelectionStrategy = "highest_success_rate"
	SelectionCostOptimized        SelectionStrategy = "cost_optimized"
	SelectionResearchTypeOptimized SelectionStrategy = "research_type_optimized"
	SelectionBalanced             SelectionStrategy = "balanced"
)

// FusionStrategy names a Hybrid Searcher score-combination policy.
type FusionStrategy string

const (
	FusionReciprocalRank      FusionStrategy = "reciprocal_rank_fusion"
	FusionWeightedScoring     FusionStrategy = "weighted_scoring"
	FusionRankFusion          FusionStrategy = "rank_fusion"
	FusionMaxScore            FusionStrategy = "max_score"
	FusionLinearInterpolation FusionStrategy = "linear_interpolation"
	FusionML                  FusionStrategy = "ml_fusion"
)

// ProviderResponse is one provider's answer inside a ValidationSession.
type ProviderResponse struct {
	Response     string
	QualityScore float64
	ResponseTime time.Duration
	Metadata     map[string]interface{}
}

// ValidationSession is the ephemeral state of one cross-validation call.
type ValidationSession struct {
	ID                string
	ProviderResponses map[string]ProviderResponse
	ConsistencyScore  float64
	ConsensusAnswer   string
	ConsensusMethod   ConsensusMethod
	ConfidenceScore   float64
	StartedAt         time.Time
	CompletedAt       time.Time
}
