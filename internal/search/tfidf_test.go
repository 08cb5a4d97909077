package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTFIDFIndex_Search_ReturnsScoredMatchesOrderedDescending(t *testing.T) {
	idx := NewTFIDFIndex()
	idx.IndexDocuments([]Document{
		{ID: "goroutines", Content: "Goroutines are lightweight concurrent functions managed by the Go runtime scheduler."},
		{ID: "channels", Content: "Channels provide typed communication between concurrent goroutines in Go programs."},
		{ID: "unrelated", Content: "Bananas are a good source of potassium and fiber."},
	})

	matches := idx.Search("concurrent goroutines communication")
	require.Len(t, matches, 2)
	assert.Equal(t, "channels", matches[0].DocID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestTFIDFIndex_Search_ReportsQueryCoverageAndMatchedTerms(t *testing.T) {
	idx := NewTFIDFIndex()
	idx.IndexDocuments([]Document{
		{ID: "doc1", Content: "caching reduces database load significantly"},
	})

	matches := idx.Search("caching database latency")
	require.Len(t, matches, 1)
	assert.InDelta(t, 2.0/3.0, matches[0].QueryCoverage, 1e-9)
	assert.ElementsMatch(t, []string{"caching", "database"}, matches[0].MatchedTerms)
	assert.Equal(t, 1, matches[0].TermMatches["caching"])
}

func TestTFIDFIndex_Search_NoMatchReturnsEmpty(t *testing.T) {
	idx := NewTFIDFIndex()
	idx.IndexDocuments([]Document{{ID: "doc1", Content: "apples and oranges"}})

	matches := idx.Search("quantum entanglement")
	assert.Empty(t, matches)
}

func TestTFIDFIndex_IndexDocuments_ReindexingReplacesPriorContent(t *testing.T) {
	idx := NewTFIDFIndex()
	idx.IndexDocuments([]Document{{ID: "doc1", Content: "original placeholder content"}})
	idx.IndexDocuments([]Document{{ID: "doc1", Content: "updated replacement text"}})

	assert.Empty(t, idx.Search("original placeholder"))
	assert.NotEmpty(t, idx.Search("updated replacement"))
}

func TestTFIDFIndex_Tokenize_DropsShortTokensAndLowercases(t *testing.T) {
	tokens := tokenize("Go is a fast, simple language for concurrent systems.")
	assert.NotContains(t, tokens, "go")
	assert.NotContains(t, tokens, "is")
	assert.Contains(t, tokens, "fast")
	assert.Contains(t, tokens, "concurrent")
	assert.Contains(t, tokens, "systems")
}

// TestTFIDFIndex_IDF_PositiveIffTermNotInEveryDocument exercises P12: for
// a term appearing in exactly k>0 documents of an N-document corpus,
// IDF(t) = ln(N/k) > 0 iff k < N.
func TestTFIDFIndex_IDF_PositiveIffTermNotInEveryDocument(t *testing.T) {
	idx := NewTFIDFIndex()
	idx.IndexDocuments([]Document{
		{ID: "a", Content: "shared vocabulary appears everywhere common"},
		{ID: "b", Content: "shared vocabulary appears everywhere common"},
		{ID: "c", Content: "shared vocabulary distinct outlier content"},
	})

	idx.mu.RLock()
	n := len(idx.docs)
	sharedIDF := idx.idf("shared", n) // appears in all 3 documents
	distinctIDF := idx.idf("distinct", n) // appears in exactly 1 document
	idx.mu.RUnlock()

	assert.Equal(t, 0.0, sharedIDF, "term in all N documents has IDF 0")
	assert.Greater(t, distinctIDF, 0.0, "term in k<N documents has positive IDF")
	assert.InDelta(t, math.Log(3.0/1.0), distinctIDF, 1e-9)
}
