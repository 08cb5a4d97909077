package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fortitude-core/fortitude/internal/vectorstore"
	"github.com/fortitude-core/fortitude/pkg/observability"
)

// Config tunes a Searcher, the generalized form of spec.md §6's
// HybridSearchConfig.
type Config struct {
	VectorWeight     float64
	KeywordWeight    float64
	FusionStrategy   FusionStrategy
	MinScore         float64
	ApplyDiversification bool
	Adaptive         bool
}

// DefaultConfig returns the teacher's documented default weight split
// (0.6 vector / 0.2 keyword / 0.2 importance, collapsed here to the two
// sides this core fuses) with ReciprocalRankFusion as the default
// strategy, per spec.md §4.8.
func DefaultConfig() Config {
	return Config{
		VectorWeight:   0.6,
		KeywordWeight:  0.4,
		FusionStrategy: FusionReciprocalRankFusion,
		MinScore:       0,
		Adaptive:       true,
	}
}

// Result is one ranked, diversified search hit, ready for presentation.
type Result struct {
	DocID       string
	Score       float64
	Explanation string
}

// Options configures one Search call, the per-request overlay on Config.
type Options struct {
	Limit       int
	QueryType   QueryType
	Explain     bool
}

// Searcher is the Hybrid Searcher (C8): fuses TF-IDF keyword search over
// an in-process index with vector similarity search against the Vector
// Store collaborator, applies adaptive weighting, diversification, and
// truncation.
type Searcher struct {
	mu      sync.RWMutex
	cfg     Config
	index   *TFIDFIndex
	vectors *vectorstore.Store
	logger  observability.Logger
}

// New builds a Searcher over a vector store collaborator. logger may be
// nil, in which case a no-op logger is used.
func New(cfg Config, vectors *vectorstore.Store, logger observability.Logger) *Searcher {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Searcher{
		cfg:     cfg,
		index:   NewTFIDFIndex(),
		vectors: vectors,
		logger:  logger,
	}
}

// IndexDocuments adds documents to the keyword index. The vector side is
// populated separately via the Vector Store collaborator's own
// StoreDocument/StoreDocuments.
func (s *Searcher) IndexDocuments(docs []Document) {
	s.index.IndexDocuments(docs)
}

// PersistIndex writes the keyword index's corpus to path (conventionally
// index/search_index.json) as pretty JSON via an atomic rename, mirroring
// internal/cache's persisted-index path so a process restart can
// rehydrate the corpus with LoadIndex instead of re-ingesting it (§6).
func (s *Searcher) PersistIndex(path string) error {
	docs := s.index.Documents()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("search: creating index directory for %s: %w", path, err)
	}

	serialized, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("search: serializing index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, serialized, 0o644); err != nil {
		return fmt.Errorf("search: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("search: renaming %s into place: %w", tmp, err)
	}

	s.logger.Debug("search index persisted", map[string]interface{}{"path": path, "documents": len(docs)})
	return nil
}

// LoadIndex rebuilds the keyword index from path, re-tokenizing every
// persisted document through IndexDocuments. A missing file is not an
// error: a fresh Searcher simply has nothing to rehydrate from yet.
func (s *Searcher) LoadIndex(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("search: reading index %s: %w", path, err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("search: corrupted index at %s: %w", path, err)
	}

	s.IndexDocuments(docs)
	s.logger.Debug("search index loaded", map[string]interface{}{"path": path, "documents": len(docs)})
	return nil
}

// Search runs hybrid retrieval for query. queryEmbedding is the caller-
// supplied dense representation of query (embedding generation is out of
// scope for this core, per spec.md §1); an empty queryEmbedding degrades
// to keyword-only search.
func (s *Searcher) Search(ctx context.Context, query string, queryEmbedding []float32, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("search: query must not be empty")
	}

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	vectorWeight, keywordWeight := cfg.VectorWeight, cfg.KeywordWeight
	if cfg.Adaptive {
		rec := RecommendStrategy(query)
		vectorWeight, keywordWeight = rec.VectorWeight, rec.KeywordWeight
	}

	keywordMatches := s.index.Search(query)

	var vectorMatches []vectorstore.Match
	if len(queryEmbedding) > 0 && s.vectors != nil {
		matches, err := s.vectors.RetrieveSimilar(ctx, queryEmbedding, candidateLimit(opts.Limit), 0)
		if err != nil {
			return nil, fmt.Errorf("search: vector retrieval failed: %w", err)
		}
		vectorMatches = matches
	}

	fused := Fuse(vectorMatches, keywordMatches, cfg.FusionStrategy, vectorWeight, keywordWeight, s.logger)

	filtered := filterByMinScore(fused, cfg.MinScore)

	if cfg.ApplyDiversification {
		filtered = s.diversify(filtered)
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	results := make([]Result, 0, len(filtered))
	for _, f := range filtered {
		r := Result{DocID: f.DocID, Score: f.Score}
		if opts.Explain {
			r.Explanation = explain(f, keywordMatches, vectorMatches)
		}
		results = append(results, r)
	}
	return results, nil
}

// candidateLimit over-fetches candidates for fusion/diversification, the
// same "retrieve more candidates for re-ranking" idiom as
// pkg/rag/retrieval/hybrid.go's SearchWithOptions (candidateLimit :=
// opts.Limit * 3).
func candidateLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	return limit * 3
}

func filterByMinScore(results []FusedResult, minScore float64) []FusedResult {
	if minScore <= 0 {
		return results
	}
	filtered := make([]FusedResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// diversify deduplicates by a hash of each document's first 100 content
// characters, per spec.md §4.8's post-processing step. Content is looked
// up from the keyword index, since that's the one side guaranteed to
// hold the original text for every indexed document.
func (s *Searcher) diversify(results []FusedResult) []FusedResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]FusedResult, 0, len(results))
	for _, r := range results {
		h := s.contentPrefixHash(r.DocID)
		if h == "" {
			out = append(out, r)
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (s *Searcher) contentPrefixHash(docID string) string {
	s.index.mu.RLock()
	defer s.index.mu.RUnlock()
	stats, ok := s.index.docs[docID]
	if !ok {
		return ""
	}
	prefix := stats.content
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	sum := sha256.Sum256([]byte(prefix))
	return hex.EncodeToString(sum[:])
}

func explain(f FusedResult, keyword []KeywordMatch, vector []vectorstore.Match) string {
	var inKeyword, inVector bool
	for _, m := range keyword {
		if m.DocID == f.DocID {
			inKeyword = true
			break
		}
	}
	for _, m := range vector {
		if m.Document.ID == f.DocID {
			inVector = true
			break
		}
	}
	switch {
	case inKeyword && inVector:
		return "matched both keyword and vector search"
	case inKeyword:
		return "matched keyword search only"
	case inVector:
		return "matched vector search only"
	default:
		return "fused score with no surviving side match"
	}
}
