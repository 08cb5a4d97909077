package validate

import (
	"sort"
	"strings"

	"github.com/fortitude-core/fortitude/internal/model"
)

// GenerateConsensus synthesizes one answer from N successful provider
// responses per the configured method (§4.7.3). It handles both
// degenerate cases: N=1 returns that response with its own quality as
// confidence; N=0 returns ("", 0).
func GenerateConsensus(results []providerResult, method model.ConsensusMethod) (string, float64) {
	n := len(results)
	if n == 0 {
		return "", 0
	}
	if n == 1 {
		return results[0].response, results[0].quality.Composite
	}

	switch method {
	case model.ConsensusMajorityVote:
		return majorityVote(results)
	case model.ConsensusBestQuality:
		return bestQuality(results)
	case model.ConsensusEnsembleMerge:
		return ensembleMerge(results)
	default:
		return weightedVote(results)
	}
}

func rankedByQuality(results []providerResult) []providerResult {
	ranked := append([]providerResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].quality.Composite > ranked[j].quality.Composite
	})
	return ranked
}

// weightedVote picks the highest composite-quality response; confidence
// is that score divided by N.
func weightedVote(results []providerResult) (string, float64) {
	ranked := rankedByQuality(results)
	best := ranked[0]
	return best.response, best.quality.Composite / float64(len(results))
}

// bestQuality picks the max-composite-quality response; confidence is
// that score itself (not divided by N).
func bestQuality(results []providerResult) (string, float64) {
	ranked := rankedByQuality(results)
	return ranked[0].response, ranked[0].quality.Composite
}

// majorityVote groups responses by the first 5 normalized words, picks
// the highest-quality member of the largest group; confidence is that
// group's size over N.
func majorityVote(results []providerResult) (string, float64) {
	groups := make(map[string][]providerResult)
	var order []string
	for _, r := range results {
		key := normalizedPrefix(r.response, 5)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	var largestKey string
	var largestKeyBest float64
	for _, key := range order {
		best := rankedByQuality(groups[key])[0].quality.Composite
		switch {
		case largestKey == "":
			largestKey, largestKeyBest = key, best
		case len(groups[key]) > len(groups[largestKey]):
			largestKey, largestKeyBest = key, best
		case len(groups[key]) == len(groups[largestKey]) && best > largestKeyBest:
			largestKey, largestKeyBest = key, best
		}
	}

	members := rankedByQuality(groups[largestKey])
	return members[0].response, float64(len(groups[largestKey])) / float64(len(results))
}

// ensembleMerge starts from the best-quality response and, for each
// next-ranked response, appends sentences introducing more than 3 new
// significant (non-stop) words; confidence is a rank-decayed weighted
// sum of quality scores divided by the number of responses, clamped to 1.
func ensembleMerge(results []providerResult) (string, float64) {
	ranked := rankedByQuality(results)

	merged := ranked[0].response
	seen := significantWords(merged)

	for _, r := range ranked[1:] {
		for _, sentence := range splitIntoSentences(r.response) {
			newWords := 0
			for w := range significantWords(sentence) {
				if _, ok := seen[w]; !ok {
					newWords++
				}
			}
			if newWords > 3 {
				merged = strings.TrimSpace(merged) + " " + strings.TrimSpace(sentence) + "."
				for w := range significantWords(sentence) {
					seen[w] = struct{}{}
				}
			}
		}
	}

	var confidence float64
	weight := 1.0
	for _, r := range ranked {
		confidence += r.quality.Composite * weight
		weight *= 0.5
	}
	confidence /= float64(len(ranked))
	if confidence > 1 {
		confidence = 1
	}

	return merged, confidence
}

var ensembleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "on": {}, "it": {},
}

func significantWords(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:")
		if len(w) <= 2 {
			continue
		}
		if _, stop := ensembleStopWords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func splitIntoSentences(text string) []string {
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
