package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fortitude-core/fortitude/internal/quality"
)

// Conflict flags a detected disagreement between two provider responses.
type Conflict struct {
	Kind       string // "FactualContradiction" | "SemanticInconsistency"
	ProviderA  string
	ProviderB  string
	Severity   float64
}

// ConsistencyResult is the full output of Consistency Analysis (§4.7.2).
type ConsistencyResult struct {
	OverallConsistency float64
	Conflicts          []Conflict
}

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

var headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)
var listMarkerPattern = regexp.MustCompile(`(?m)^\s*([-*]|\d+\.)\s`)

// AnalyzeConsistency runs §4.7.2's pairwise semantic/factual/structural
// comparisons plus per-response completeness over every successful
// response, and emits conflicts for pairs below their respective
// thresholds.
func AnalyzeConsistency(query string, results []providerResult) ConsistencyResult {
	n := len(results)
	if n < 2 {
		completeness := 0.0
		if n == 1 {
			completeness = completenessFor(query, results[0].response)
		}
		return ConsistencyResult{OverallConsistency: completeness}
	}

	var semanticScores, factualScores, structuralScores []float64
	var conflicts []Conflict

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := results[i], results[j]

			semantic := quality.Jaccard(quality.WordSet(a.response), quality.WordSet(b.response))
			factual := factualConsistency(semantic, a.response, b.response)
			structural := structuralConsistency(a.response, b.response)

			semanticScores = append(semanticScores, semantic)
			factualScores = append(factualScores, factual)
			structuralScores = append(structuralScores, structural)

			if factual < 0.5 {
				conflicts = append(conflicts, Conflict{
					Kind: "FactualContradiction", ProviderA: a.provider, ProviderB: b.provider,
					Severity: 1 - factual,
				})
			}
			if semantic < 0.4 {
				conflicts = append(conflicts, Conflict{
					Kind: "SemanticInconsistency", ProviderA: a.provider, ProviderB: b.provider,
					Severity: 1 - semantic,
				})
			}
		}
	}

	completenessScores := make([]float64, n)
	for i, r := range results {
		completenessScores[i] = completenessFor(query, r.response)
	}

	overall := 0.3*mean(semanticScores) + 0.4*mean(factualScores) + 0.2*mean(structuralScores) +
		0.1*(1-stddev(completenessScores))

	return ConsistencyResult{
		OverallConsistency: clamp01(overall),
		Conflicts:          conflicts,
	}
}

// factualConsistency starts from semantic similarity and subtracts
// penalties for numeric disagreement (>10x ratio: -0.5, >100x: -0.3
// additional) and contradictory phrase pairs (-0.2 each), per §4.7.2.
func factualConsistency(semantic float64, a, b string) float64 {
	score := semantic

	numsA := extractNumbers(a)
	numsB := extractNumbers(b)
	for _, x := range numsA {
		for _, y := range numsB {
			ratio := numberRatio(x, y)
			if ratio > 100 {
				score -= 0.3
			}
			if ratio > 10 {
				score -= 0.5
			}
		}
	}

	lowerA, lowerB := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range quality.ContradictionPairs {
		aHasFirst, bHasSecond := strings.Contains(lowerA, pair[0]), strings.Contains(lowerB, pair[1])
		aHasSecond, bHasFirst := strings.Contains(lowerA, pair[1]), strings.Contains(lowerB, pair[0])
		if (aHasFirst && bHasSecond) || (aHasSecond && bHasFirst) {
			score -= 0.2
		}
	}

	return clamp01(score)
}

func extractNumbers(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func numberRatio(x, y float64) float64 {
	if x == 0 || y == 0 {
		return 0
	}
	if x < y {
		x, y = y, x
	}
	return x / y
}

// structuralConsistency compares header counts, list-marker counts, and
// paragraph counts between two responses, each turned into a
// 1-|delta|/max similarity and averaged.
func structuralConsistency(a, b string) float64 {
	headerSim := ratioSimilarity(len(headerPattern.FindAllString(a, -1)), len(headerPattern.FindAllString(b, -1)))
	listSim := ratioSimilarity(len(listMarkerPattern.FindAllString(a, -1)), len(listMarkerPattern.FindAllString(b, -1)))
	paraSim := ratioSimilarity(paragraphCount(a), paragraphCount(b))
	return (headerSim + listSim + paraSim) / 3
}

func ratioSimilarity(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	max := a
	if b > max {
		max = b
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	return 1 - float64(delta)/float64(max)
}

func paragraphCount(text string) int {
	parts := strings.Split(strings.TrimSpace(text), "\n\n")
	count := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}
	return count
}

func completenessFor(query, response string) float64 {
	return quality.Evaluate(query, response, quality.Weights{Completeness: 1}).Completeness
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
