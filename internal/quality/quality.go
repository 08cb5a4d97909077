// Package quality implements the Quality Scorer external collaborator
// (§6): a weighted composite score over a response relative to its
// originating query, consumed by the Cross-Validator (C7) and optionally
// the Fallback Manager (C6). Grounded on the teacher's document
// importance scorer — same weighted-dimension-sum-then-clamp shape,
// re-targeted from document freshness/authority/popularity to
// relevance/accuracy/completeness/clarity.
package quality

import (
	"math"
	"strings"
)

// Weights controls how much each dimension contributes to the composite
// score. Weights need not sum to 1; Evaluate normalizes by their sum.
type Weights struct {
	Relevance    float64
	Accuracy     float64
	Completeness float64
	Clarity      float64
}

// DefaultWeights mirrors the teacher's DefaultWeights pattern: relevance
// dominates, the remaining dimensions share the rest.
func DefaultWeights() Weights {
	return Weights{
		Relevance:    0.4,
		Accuracy:     0.25,
		Completeness: 0.25,
		Clarity:      0.1,
	}
}

// Result is the Quality Scorer's output: a composite in [0,1] plus the
// per-dimension scores that produced it.
type Result struct {
	Composite    float64
	Relevance    float64
	Accuracy     float64
	Completeness float64
	Clarity      float64
}

var connectiveMarkers = []string{
	"because", "however", "for example", "therefore", "specifically",
	"in addition", "as a result", "for instance", "on the other hand",
}

// Evaluate scores response against query under weights, clamped to
// [0,1]. Each dimension is a pure function of the text; there is no
// model call here — it is the core's own lightweight scorer, not an LLM
// judge.
func Evaluate(query, response string, weights Weights) Result {
	relevance := relevanceScore(query, response)
	accuracy := accuracyScore(response)
	completeness := completenessScore(query, response)
	clarity := clarityScore(response)

	sum := weights.Relevance + weights.Accuracy + weights.Completeness + weights.Clarity
	if sum == 0 {
		sum = 1
	}

	composite := (relevance*weights.Relevance + accuracy*weights.Accuracy +
		completeness*weights.Completeness + clarity*weights.Clarity) / sum

	return Result{
		Composite:    clamp01(composite),
		Relevance:    relevance,
		Accuracy:     accuracy,
		Completeness: completeness,
		Clarity:      clarity,
	}
}

// relevanceScore is the Jaccard overlap between query and response word
// sets, case-folded — the same similarity primitive the Cross-Validator
// uses for semantic consistency (§4.7.2), applied here query-to-response
// instead of response-to-response.
func relevanceScore(query, response string) float64 {
	return Jaccard(WordSet(query), WordSet(response))
}

// accuracyScore penalizes responses containing internally contradictory
// phrase pairs (the same table §4.7.2 uses for factual consistency),
// since a single response shouldn't assert and deny the same claim.
func accuracyScore(response string) float64 {
	lower := strings.ToLower(response)
	score := 1.0
	for _, pair := range ContradictionPairs {
		if strings.Contains(lower, pair[0]) && strings.Contains(lower, pair[1]) {
			score -= 0.2
		}
	}
	return clamp01(score)
}

// completenessScore mirrors §4.7.2's per-response completeness formula:
// length relative to the query, with a bonus for connective markers that
// suggest reasoning rather than a bare assertion.
func completenessScore(query, response string) float64 {
	queryWords := len(strings.Fields(query))
	if queryWords == 0 {
		queryWords = 1
	}
	responseWords := len(strings.Fields(response))

	lengthScore := math.Min(float64(responseWords)/(10*float64(queryWords)), 1.0)

	lower := strings.ToLower(response)
	bonus := 0.0
	for _, marker := range connectiveMarkers {
		if strings.Contains(lower, marker) {
			bonus += 0.1
			if bonus >= 0.5 {
				bonus = 0.5
				break
			}
		}
	}

	return clamp01(lengthScore + bonus)
}

// clarityScore favors moderate sentence length: very long run-on
// sentences and single-word fragments both score lower.
func clarityScore(response string) float64 {
	sentences := splitSentences(response)
	if len(sentences) == 0 {
		return 0
	}

	var total float64
	for _, s := range sentences {
		words := len(strings.Fields(s))
		switch {
		case words == 0:
			continue
		case words <= 30:
			total += 1.0
		case words <= 50:
			total += 0.7
		default:
			total += 0.4
		}
	}
	return clamp01(total / float64(len(sentences)))
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
