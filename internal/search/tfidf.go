// Package search implements the Hybrid Searcher (C8): an in-process
// TF-IDF keyword index fused with the Vector Store collaborator's
// similarity search, reciprocal-rank-fusion and weighted-scoring
// combination, and an adaptive strategy selector. Grounded on
// pkg/rag/retrieval/{bm25,hybrid,mmr}.go's interface shapes, with the
// TF-IDF index itself written fresh (the teacher delegates keyword
// search to PostgreSQL trigram/FTS operators and has no in-process
// inverted index to adapt).
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Document is one unit the Hybrid Searcher indexes and retrieves over —
// the generalized shape of a stored research result or vector-store
// entry, identified by ID with plain-text Content.
type Document struct {
	ID      string
	Content string
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases text, extracts alphanumeric runs, and drops tokens
// of length <= 2, per spec.md §4.8.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 2 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// docStats holds one document's term frequencies, total token count, and
// original content (kept for diversification's content-prefix hash and
// for explanation text; the TF-IDF math itself only needs termFreq).
type docStats struct {
	termFreq   map[string]int
	totalTerms int
	content    string
}

// KeywordMatch is one TF-IDF keyword search hit.
type KeywordMatch struct {
	DocID         string
	Score         float64
	MatchedTerms  []string
	TermMatches   map[string]int
	QueryCoverage float64
}

// TFIDFIndex is an in-process inverted index over a corpus of Documents.
// The corpus and index are mutated only by IndexDocuments; Search takes a
// read lock, matching spec.md §5's "HybridSearcher corpus and indices are
// mutated only during index_documents; queries take read locks."
type TFIDFIndex struct {
	mu    sync.RWMutex
	docs  map[string]docStats
	order []string
	df    map[string]int
}

// NewTFIDFIndex returns an empty index.
func NewTFIDFIndex() *TFIDFIndex {
	return &TFIDFIndex{
		docs: make(map[string]docStats),
		df:   make(map[string]int),
	}
}

// IndexDocuments tokenizes and adds (or replaces) each document's term
// statistics, updating document frequencies.
func (idx *TFIDFIndex) IndexDocuments(docs []Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, doc := range docs {
		if _, exists := idx.docs[doc.ID]; !exists {
			idx.order = append(idx.order, doc.ID)
		} else {
			idx.removeFromDFLocked(doc.ID)
		}

		tokens := tokenize(doc.Content)
		stats := docStats{termFreq: make(map[string]int, len(tokens)), totalTerms: len(tokens), content: doc.Content}
		for _, t := range tokens {
			stats.termFreq[t]++
		}
		idx.docs[doc.ID] = stats

		for term := range stats.termFreq {
			idx.df[term]++
		}
	}
}

func (idx *TFIDFIndex) removeFromDFLocked(docID string) {
	old, ok := idx.docs[docID]
	if !ok {
		return
	}
	for term := range old.termFreq {
		idx.df[term]--
		if idx.df[term] <= 0 {
			delete(idx.df, term)
		}
	}
}

// idf computes ln(N/df) for one term, over the current corpus size N.
func (idx *TFIDFIndex) idf(term string, n int) float64 {
	df := idx.df[term]
	if df == 0 || n == 0 {
		return 0
	}
	return math.Log(float64(n) / float64(df))
}

// Search scores every indexed document against query's tokens and
// returns every document containing at least one query term, ordered by
// score descending. A term present in every document has IDF 0, so a
// document matching only such terms is returned with score 0. Each
// match reports which query terms it matched and query_coverage: the
// fraction of distinct query terms present in the document.
func (idx *TFIDFIndex) Search(query string) []KeywordMatch {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTerms := uniqueTerms(tokenize(query))
	if len(queryTerms) == 0 || len(idx.docs) == 0 {
		return nil
	}
	n := len(idx.docs)

	matches := make([]KeywordMatch, 0, len(idx.docs))
	for _, docID := range idx.order {
		stats, ok := idx.docs[docID]
		if !ok || stats.totalTerms == 0 {
			continue
		}

		var score float64
		var matchedTerms []string
		termMatches := make(map[string]int)
		for _, term := range queryTerms {
			count, present := stats.termFreq[term]
			if !present {
				continue
			}
			tf := float64(count) / float64(stats.totalTerms)
			score += tf * idx.idf(term, n)
			matchedTerms = append(matchedTerms, term)
			termMatches[term] = count
		}

		if len(matchedTerms) == 0 {
			continue
		}

		matches = append(matches, KeywordMatch{
			DocID:         docID,
			Score:         score,
			MatchedTerms:  matchedTerms,
			TermMatches:   termMatches,
			QueryCoverage: float64(len(matchedTerms)) / float64(len(queryTerms)),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

// Documents returns every indexed document's ID and original content, in
// insertion order. PersistIndex serializes this rather than the derived
// term-frequency tables; LoadIndex rebuilds those via IndexDocuments.
func (idx *TFIDFIndex) Documents() []Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	docs := make([]Document, 0, len(idx.order))
	for _, id := range idx.order {
		if stats, ok := idx.docs[id]; ok {
			docs = append(docs, Document{ID: id, Content: stats.content})
		}
	}
	return docs
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
