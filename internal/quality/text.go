package quality

import "strings"

// ContradictionPairs are the literal phrase pairs §4.7.2 names for
// detecting contradictory assertions within or across responses: is/is
// not, can/cannot, will/will not, does/does not, true/false, yes/no.
var ContradictionPairs = [][2]string{
	{"is ", "is not "},
	{"can ", "cannot "},
	{"will ", "will not "},
	{"does ", "does not "},
	{"true", "false"},
	{"yes", "no"},
}

// WordSet lowercases text and returns its distinct words as a set, the
// shared input to every Jaccard comparison in this package and in the
// Cross-Validator's consistency analysis.
func WordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard computes |a ∩ b| / |a ∪ b|, or 1.0 when both sets are empty (two
// empty responses are trivially identical, not trivially dissimilar).
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
