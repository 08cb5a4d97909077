// Package vectorstore is the Vector Store external collaborator (§6):
// an in-memory, single-process implementation of the store/retrieve
// contract the Hybrid Searcher (C8) and migration tooling depend on.
// Grounded on pkg/repository/vector's Repository interface and
// MockRepository, generalized from vendor-specific Embedding records to
// model.VectorDocument and reduced to the single-process scope this core
// targets (no Postgres/pgvector backend).
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/pkg/observability"
)

// Match pairs a stored document with its similarity score and rank
// against one query, mirroring the vector-search-as-external-collaborator
// contract described in spec.md §4.8 ("vector search ... returns (doc,
// relevance_score, rank)").
type Match struct {
	Document model.VectorDocument
	Score    float64
	Rank     int
}

// Stats summarizes the store's current contents, the generalized
// equivalent of the teacher's GetSupportedModels introspection.
type Stats struct {
	DocumentCount int
	ContentTypes  map[string]int
}

// Store is an in-memory implementation of the Vector Store collaborator.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]model.VectorDocument
	logger  observability.Logger
	metrics observability.MetricsClient
}

// New builds an empty Store. logger/metrics may be nil, in which case
// no-op implementations are used.
func New(logger observability.Logger, metrics observability.MetricsClient) *Store {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Store{
		docs:    make(map[string]model.VectorDocument),
		logger:  logger,
		metrics: metrics,
	}
}

// Initialize is a no-op for the in-memory store, present so callers that
// expect the full collaborator contract (§6) can treat every
// implementation uniformly.
func (s *Store) Initialize(ctx context.Context) error {
	return nil
}

// StoreDocument persists one document, stamping StoredAt if unset.
func (s *Store) StoreDocument(ctx context.Context, doc model.VectorDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("vectorstore: document ID must not be empty")
	}
	if doc.StoredAt.IsZero() {
		doc.StoredAt = time.Now()
	}

	s.mu.Lock()
	s.docs[doc.ID] = doc
	count := len(s.docs)
	s.mu.Unlock()

	s.metrics.RecordGauge("vectorstore_document_count", float64(count), nil)
	return nil
}

// StoreDocuments persists many documents in one call.
func (s *Store) StoreDocuments(ctx context.Context, docs []model.VectorDocument) error {
	for _, doc := range docs {
		if err := s.StoreDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// RetrieveByID returns the document with id, or false if absent.
func (s *Store) RetrieveByID(ctx context.Context, id string) (model.VectorDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// RetrieveSimilar ranks every stored document by cosine similarity to
// queryEmbedding and returns the top limit matches above minScore, in
// descending-score order. The similarity formula matches the teacher's
// MMR.cosineSimilarity exactly (zero similarity for dimension mismatch or
// a zero vector, rather than an error, since callers treat it as a score
// not a precondition).
func (s *Store) RetrieveSimilar(ctx context.Context, queryEmbedding []float32, limit int, minScore float64) ([]Match, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("vectorstore: query embedding must not be empty")
	}

	s.mu.RLock()
	candidates := make([]model.VectorDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		candidates = append(candidates, doc)
	}
	s.mu.RUnlock()

	matches := make([]Match, 0, len(candidates))
	for _, doc := range candidates {
		score := cosineSimilarity(doc.Embedding, queryEmbedding)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Document: doc, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	for i := range matches {
		matches[i].Rank = i
	}
	return matches, nil
}

// UpdateDocument overwrites an existing document, preserving StoredAt
// unless the caller sets a new one.
func (s *Store) UpdateDocument(ctx context.Context, doc model.VectorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[doc.ID]
	if !ok {
		return fmt.Errorf("vectorstore: document %q not found", doc.ID)
	}
	if doc.StoredAt.IsZero() {
		doc.StoredAt = existing.StoredAt
	}
	s.docs[doc.ID] = doc
	return nil
}

// DeleteDocument removes one document by ID. Deleting a missing ID is not
// an error, matching the teacher's delete-is-idempotent convention.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

// DeleteBatch removes many documents by ID.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) error {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	s.mu.Unlock()
	return nil
}

// GetStats reports the current document count and content-type breakdown.
func (s *Store) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{DocumentCount: len(s.docs), ContentTypes: make(map[string]int)}
	for _, doc := range s.docs {
		if doc.Metadata.ContentType != "" {
			stats.ContentTypes[doc.Metadata.ContentType]++
		}
	}
	return stats
}

// cosineSimilarity computes dot(a,b) / (|a|·|b|), returning 0 for
// mismatched dimensions or a zero-magnitude vector.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
