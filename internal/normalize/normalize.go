// Package normalize canonicalizes raw query text for cache-key derivation
// and classification (C1 Query Normalizer).
package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// stopWords is dropped from every normalized query. Word order of the
// remaining tokens is preserved — sorting is forbidden because "rust
// async" and "python async" must remain distinct queries.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "how": {}, "what": {},
	"is": {}, "are": {}, "to": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"with": {}, "do": {}, "does": {}, "can": {}, "should": {}, "will": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "you": {}, "your": {}, "it": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "be": {}, "been": {},
	"was": {}, "were": {}, "but": {}, "at": {}, "by": {}, "from": {},
	"about": {}, "into": {}, "just": {}, "so": {}, "than": {}, "then": {},
	"there": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {},
}

// synonyms maps a variant phrase to its canonical technical term. Keys are
// checked against whole tokens after stop-word removal.
var synonyms = map[string]string{
	"asynchronous":  "async",
	"asyncio":       "async",
	"implementation": "implement",
	"implementing":  "implement",
	"implemented":   "implement",
	"programming":   "program",
	"coding":        "program",
	"coded":         "program",
	"optimise":      "optimize",
	"optimisation":  "optimize",
	"optimization":  "optimize",
	"configuring":   "configure",
	"configuration": "configure",
}

// Query lowercases q, strips punctuation, collapses whitespace, drops stop
// words, and applies the technical-synonym table. Word order is preserved.
func Query(q string) string {
	lower := strings.ToLower(q)
	stripped := nonAlphanumeric.ReplaceAllString(lower, " ")
	collapsed := strings.TrimSpace(multiSpace.ReplaceAllString(stripped, " "))
	if collapsed == "" {
		return ""
	}

	tokens := strings.Split(collapsed, " ")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, skip := stopWords[tok]; skip {
			continue
		}
		if canon, ok := synonyms[tok]; ok {
			tok = canon
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// ConfidenceBand buckets a [0,1] confidence value to keep cache keys
// stable across tiny numeric jitter, per the 0.3/0.6/0.8 thresholds.
func ConfidenceBand(x float64) string {
	switch {
	case x >= 0.8:
		return "very_high"
	case x >= 0.6:
		return "high"
	case x >= 0.3:
		return "medium"
	default:
		return "low"
	}
}

// ProcessingTimeCategory buckets a duration in milliseconds, per the
// 100/500/2000ms thresholds.
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
