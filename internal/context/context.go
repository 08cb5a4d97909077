// Package detect determines audience, technical domain, and urgency from
// a normalized query (C3 Context Detector). It lives under internal/context
// per the component's name, but the package identifier avoids shadowing
// the stdlib "context" package in every importer.
package detect

import (
	"strings"
	"time"

	"github.com/fortitude-core/fortitude/internal/model"
)

// MinDimensionConfidence is the floor below which a dimension's heuristic
// result is discarded in favor of the neutral default, setting
// fallback_used.
const MinDimensionConfidence = 0.15

var audienceKeywords = map[model.AudienceLevel][]string{
	model.AudienceBeginner:     {"beginner", "new", "start", "basics", "simple", "first"},
	model.AudienceIntermediate: {"intermediate", "familiar", "some", "experience"},
	model.AudienceAdvanced:     {"advanced", "expert", "deep", "internals", "performance", "production"},
}

var domainKeywords = map[model.TechnicalDomain][]string{
	model.DomainWeb:      {"web", "http", "frontend", "backend", "api", "react", "browser"},
	model.DomainSystems:  {"systems", "kernel", "memory", "concurrency", "thread", "rust", "c"},
	model.DomainData:     {"data", "database", "sql", "pipeline", "etl", "analytics"},
	model.DomainMobile:   {"mobile", "ios", "android", "app"},
	model.DomainDevOps:   {"devops", "deploy", "kubernetes", "docker", "ci", "cd", "infrastructure"},
	model.DomainSecurity: {"security", "auth", "encryption", "vulnerability", "exploit"},
}

var urgencyKeywords = map[model.UrgencyLevel][]string{
	model.UrgencyUrgent:      {"urgent", "asap", "immediately", "production", "down", "critical", "now"},
	model.UrgencyPlanned:     {"planned", "upcoming", "next", "roadmap", "sprint"},
	model.UrgencyExploratory: {"exploring", "curious", "someday", "maybe", "thinking"},
}

// Detect returns the full EnhancedClassification for a normalized query
// given its research type. It never fails; dimensions with no confident
// match fall back to neutral defaults and set FallbackUsed.
func Detect(normalizedQuery string, researchType model.ResearchType) model.EnhancedClassification {
	start := time.Now()
	tokens := tokenSet(normalizedQuery)

	audience, audienceDim, audienceFallback := pickAudience(tokens)
	domain, domainDim, domainFallback := pickDomain(tokens, researchType)
	urgency, urgencyDim, urgencyFallback := pickUrgency(tokens)

	fallback := audienceFallback || domainFallback || urgencyFallback

	overall := (audienceDim.Confidence + domainDim.Confidence + urgencyDim.Confidence) / 3.0

	return model.EnhancedClassification{
		AudienceLevel:     audience,
		TechnicalDomain:   domain,
		UrgencyLevel:      urgency,
		OverallConfidence: overall,
		AudienceResult:    audienceDim,
		DomainResult:      domainDim,
		UrgencyResult:     urgencyDim,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
		FallbackUsed:      fallback,
	}
}

func tokenSet(q string) map[string]struct{} {
	tokens := strings.Fields(q)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// pickAudience returns the best-matching audience level, its scored
// dimension result, and whether the floor was missed and a default applied.
func pickAudience(tokens map[string]struct{}) (model.AudienceLevel, model.DimensionResult, bool) {
	level, matched, score := bestMatch(tokens, func(k model.AudienceLevel) []string {
		return audienceKeywords[k]
	}, []model.AudienceLevel{model.AudienceBeginner, model.AudienceIntermediate, model.AudienceAdvanced})
	if score < MinDimensionConfidence {
		return model.AudienceIntermediate, model.DimensionResult{
			Confidence: 0.5,
			Reasoning:  "no confident audience signal, defaulting to intermediate",
		}, true
	}
	return level, model.DimensionResult{
		Confidence:      score,
		MatchedKeywords: matched,
		Reasoning:       "matched audience keyword table",
	}, false
}

func pickDomain(tokens map[string]struct{}, researchType model.ResearchType) (model.TechnicalDomain, model.DimensionResult, bool) {
	best := model.DomainGeneral
	var bestMatched []string
	bestScore := 0.0
	for _, d := range []model.TechnicalDomain{
		model.DomainWeb, model.DomainSystems, model.DomainData,
		model.DomainMobile, model.DomainDevOps, model.DomainSecurity,
	} {
		var matched []string
		for _, kw := range domainKeywords[d] {
			if _, ok := tokens[kw]; ok {
				matched = append(matched, kw)
			}
		}
		score := float64(len(matched)) / float64(len(domainKeywords[d]))
		if score > bestScore {
			bestScore = score
			best = d
			bestMatched = matched
		}
	}
	if bestScore < MinDimensionConfidence {
		return model.DomainGeneral, model.DimensionResult{
			Confidence: 0.5,
			Reasoning:  "no confident domain signal, defaulting to general",
		}, true
	}
	return best, model.DimensionResult{
		Confidence:      bestScore,
		MatchedKeywords: bestMatched,
		Reasoning:       "matched domain keyword table",
	}, false
}

func pickUrgency(tokens map[string]struct{}) (model.UrgencyLevel, model.DimensionResult, bool) {
	best := model.UrgencyPlanned
	var bestMatched []string
	bestScore := 0.0
	for _, u := range []model.UrgencyLevel{model.UrgencyUrgent, model.UrgencyPlanned, model.UrgencyExploratory} {
		var matched []string
		for _, kw := range urgencyKeywords[u] {
			if _, ok := tokens[kw]; ok {
				matched = append(matched, kw)
			}
		}
		score := float64(len(matched)) / float64(len(urgencyKeywords[u]))
		if score > bestScore {
			bestScore = score
			best = u
			bestMatched = matched
		}
	}
	if bestScore < MinDimensionConfidence {
		return model.UrgencyPlanned, model.DimensionResult{
			Confidence: 0.5,
			Reasoning:  "no confident urgency signal, defaulting to planned",
		}, true
	}
	return best, model.DimensionResult{
		Confidence:      bestScore,
		MatchedKeywords: bestMatched,
		Reasoning:       "matched urgency keyword table",
	}, false
}

// bestMatch is a small helper shared by pickAudience's table scan; kept
// separate so the scoring rule (matches/vocab size) lives in one place.
func bestMatch(
	tokens map[string]struct{},
	keywordsFor func(model.AudienceLevel) []string,
	order []model.AudienceLevel,
) (model.AudienceLevel, []string, float64) {
	best := order[0]
	var bestMatched []string
	bestScore := 0.0
	for _, level := range order {
		var matched []string
		for _, kw := range keywordsFor(level) {
			if _, ok := tokens[kw]; ok {
				matched = append(matched, kw)
			}
		}
		score := float64(len(matched)) / float64(len(keywordsFor(level)))
		if score > bestScore {
			bestScore = score
			best = level
			bestMatched = matched
		}
	}
	return best, bestMatched, bestScore
}
