package search

import (
	"sort"

	"github.com/fortitude-core/fortitude/internal/vectorstore"
	"github.com/fortitude-core/fortitude/pkg/observability"
)

// FusionStrategy selects how vector and keyword result lists are
// combined into one ranked list, per spec.md §4.8.
type FusionStrategy string

const (
	FusionReciprocalRankFusion FusionStrategy = "reciprocal_rank_fusion"
	FusionWeightedScoring      FusionStrategy = "weighted_scoring"
	FusionRankFusion           FusionStrategy = "rank_fusion"
	FusionMaxScore             FusionStrategy = "max_score"
	FusionLinearInterpolation  FusionStrategy = "linear_interpolation"
	FusionML                   FusionStrategy = "ml_fusion"
)

// rrfK is the RRF rank-damping constant, matching
// pkg/rag/retrieval/hybrid.go's reciprocalRankFusion exactly.
const rrfK = 60

// FusedResult is one document's combined score after fusion.
type FusedResult struct {
	DocID string
	Score float64
}

// Fuse combines vector and keyword matches per strategy, weighting each
// side by vectorWeight/keywordWeight (expected to sum to 1.0, not
// enforced here since callers may intentionally over/under-weight).
// MLFusion is reserved and aliases ReciprocalRankFusion with a logged
// warning, per spec.md §4.8.
func Fuse(vector []vectorstore.Match, keyword []KeywordMatch, strategy FusionStrategy, vectorWeight, keywordWeight float64, logger observability.Logger) []FusedResult {
	switch strategy {
	case FusionWeightedScoring, FusionLinearInterpolation:
		return weightedScoring(vector, keyword, vectorWeight, keywordWeight)
	case FusionML:
		if logger != nil {
			logger.Warn("ml_fusion is reserved; aliasing reciprocal_rank_fusion", nil)
		}
		return reciprocalRankFusion(vector, keyword, vectorWeight, keywordWeight)
	case FusionRankFusion, FusionMaxScore, FusionReciprocalRankFusion:
		return reciprocalRankFusion(vector, keyword, vectorWeight, keywordWeight)
	default:
		return reciprocalRankFusion(vector, keyword, vectorWeight, keywordWeight)
	}
}

// reciprocalRankFusion implements score(doc) = Σ w_side / (60 + rank_side),
// directly adapted from pkg/rag/retrieval/hybrid.go's
// reciprocalRankFusion (same constant, same accumulate-into-map-then-
// sort shape).
func reciprocalRankFusion(vector []vectorstore.Match, keyword []KeywordMatch, vectorWeight, keywordWeight float64) []FusedResult {
	scores := make(map[string]float64)
	order := make([]string, 0, len(vector)+len(keyword))

	for rank, m := range vector {
		if _, seen := scores[m.Document.ID]; !seen {
			order = append(order, m.Document.ID)
		}
		scores[m.Document.ID] += vectorWeight / float64(rank+rrfK)
	}
	for rank, m := range keyword {
		if _, seen := scores[m.DocID]; !seen {
			order = append(order, m.DocID)
		}
		scores[m.DocID] += keywordWeight / float64(rank+rrfK)
	}

	return toSortedResults(scores, order)
}

// weightedScoring normalizes each side's scores by that side's maximum,
// then combines as w_v·v̂ + w_k·k̂, per spec.md §4.8.
func weightedScoring(vector []vectorstore.Match, keyword []KeywordMatch, vectorWeight, keywordWeight float64) []FusedResult {
	scores := make(map[string]float64)
	order := make([]string, 0, len(vector)+len(keyword))

	maxVector := maxMatchScore(vector)
	maxKeyword := maxKeywordScore(keyword)

	for _, m := range vector {
		if _, seen := scores[m.Document.ID]; !seen {
			order = append(order, m.Document.ID)
		}
		if maxVector > 0 {
			scores[m.Document.ID] += vectorWeight * (m.Score / maxVector)
		}
	}
	for _, m := range keyword {
		if _, seen := scores[m.DocID]; !seen {
			order = append(order, m.DocID)
		}
		if maxKeyword > 0 {
			scores[m.DocID] += keywordWeight * (m.Score / maxKeyword)
		}
	}

	return toSortedResults(scores, order)
}

func maxMatchScore(matches []vectorstore.Match) float64 {
	var max float64
	for _, m := range matches {
		if m.Score > max {
			max = m.Score
		}
	}
	return max
}

func maxKeywordScore(matches []KeywordMatch) float64 {
	var max float64
	for _, m := range matches {
		if m.Score > max {
			max = m.Score
		}
	}
	return max
}

func toSortedResults(scores map[string]float64, order []string) []FusedResult {
	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		results = append(results, FusedResult{DocID: id, Score: scores[id]})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
