// Package classify maps a normalized query to a ResearchType with a
// confidence score and the candidate list behind the decision (C2
// Classifier).
package classify

import (
	"sort"
	"strings"

	"github.com/fortitude-core/fortitude/internal/model"
)

// DefaultCandidateThreshold filters out candidates scoring below it.
const DefaultCandidateThreshold = 0.1

// vocabulary maps each ResearchType to the keywords that indicate it. A
// query's score for a type is (matched keywords) / (vocabulary size),
// which keeps scores in [0,1] without extra normalization.
var vocabulary = map[model.ResearchType][]string{
	model.ResearchTypeLearning: {
		"learn", "understand", "explain", "tutorial", "concept", "basics",
		"introduction", "guide", "what", "why", "overview",
	},
	model.ResearchTypeImplementation: {
		"implement", "build", "create", "write", "code", "develop", "add",
		"integrate", "setup", "configure",
	},
	model.ResearchTypeTroubleshooting: {
		"error", "bug", "fix", "issue", "problem", "fail", "crash", "debug",
		"broken", "exception", "panic",
	},
	model.ResearchTypeDecision: {
		"choose", "compare", "versus", "vs", "better", "recommend", "should",
		"decide", "option", "alternative", "tradeoff",
	},
	model.ResearchTypeValidation: {
		"verify", "validate", "correct", "review", "check", "confirm",
		"test", "ensure", "audit",
	},
}

// Candidate is one scored ResearchType hypothesis.
type Candidate struct {
	Type            model.ResearchType
	Confidence      float64
	MatchedKeywords []string
}

// Result is the full classification output for a normalized query.
type Result struct {
	Type            model.ResearchType
	Confidence      float64
	MatchedKeywords []string
	Candidates      []Candidate
}

// Classify scores normalizedQuery against every type's vocabulary and
// returns the best match plus every candidate above threshold. It never
// errors on non-empty input: ambiguous input yields Learning at low
// confidence, matching the classifier's required failure mode.
func Classify(normalizedQuery string) Result {
	tokens := strings.Fields(normalizedQuery)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	var candidates []Candidate
	for rt, keywords := range vocabulary {
		var matched []string
		for _, kw := range keywords {
			if _, ok := tokenSet[kw]; ok {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		confidence := float64(len(matched)) / float64(len(keywords))
		if confidence < DefaultCandidateThreshold {
			continue
		}
		sort.Strings(matched)
		candidates = append(candidates, Candidate{
			Type:            rt,
			Confidence:      confidence,
			MatchedKeywords: matched,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Type < candidates[j].Type
	})

	if len(candidates) == 0 {
		return Result{
			Type:       model.ResearchTypeLearning,
			Confidence: 0.05,
		}
	}

	best := candidates[0]
	return Result{
		Type:            best.Type,
		Confidence:      best.Confidence,
		MatchedKeywords: best.MatchedKeywords,
		Candidates:      candidates,
	}
}
