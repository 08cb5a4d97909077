package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/vectorstore"
)

func newSearcherWithFixture(t *testing.T) (*Searcher, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New(nil, nil)
	cfg := DefaultConfig()
	cfg.Adaptive = false
	s := New(cfg, store, nil)

	docs := []Document{
		{ID: "goroutines", Content: "Goroutines are lightweight concurrent functions managed by the Go runtime scheduler."},
		{ID: "channels", Content: "Channels let goroutines communicate safely without explicit locking."},
		{ID: "bananas", Content: "Bananas are a good source of potassium and dietary fiber."},
	}
	s.IndexDocuments(docs)

	ctx := context.Background()
	require.NoError(t, store.StoreDocuments(ctx, []model.VectorDocument{
		{ID: "goroutines", Content: docs[0].Content, Embedding: []float32{1, 0, 0}},
		{ID: "channels", Content: docs[1].Content, Embedding: []float32{0.9, 0.1, 0}},
		{ID: "bananas", Content: docs[2].Content, Embedding: []float32{0, 0, 1}},
	}))

	return s, store
}

func TestSearcher_Search_KeywordOnly_WhenNoQueryEmbedding(t *testing.T) {
	s, _ := newSearcherWithFixture(t)

	results, err := s.Search(context.Background(), "goroutines communicate", nil, Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "channels", results[0].DocID)
}

func TestSearcher_Search_FusesVectorAndKeywordSides(t *testing.T) {
	s, _ := newSearcherWithFixture(t)

	results, err := s.Search(context.Background(), "goroutines scheduler", []float32{1, 0, 0}, Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "goroutines", results[0].DocID)
}

func TestSearcher_Search_RejectsEmptyQuery(t *testing.T) {
	s, _ := newSearcherWithFixture(t)

	_, err := s.Search(context.Background(), "", nil, Options{})
	assert.Error(t, err)
}

func TestSearcher_Search_TruncatesToLimit(t *testing.T) {
	s, _ := newSearcherWithFixture(t)

	results, err := s.Search(context.Background(), "goroutines channels bananas potassium", nil, Options{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearcher_Search_ExplainReportsWhichSideMatched(t *testing.T) {
	s, _ := newSearcherWithFixture(t)

	results, err := s.Search(context.Background(), "goroutines", []float32{1, 0, 0}, Options{Limit: 5, Explain: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotEmpty(t, r.Explanation)
	}
}

func TestSearcher_Search_DiversificationDropsDuplicateContent(t *testing.T) {
	store := vectorstore.New(nil, nil)
	cfg := DefaultConfig()
	cfg.Adaptive = false
	cfg.ApplyDiversification = true
	s := New(cfg, store, nil)

	s.IndexDocuments([]Document{
		{ID: "original", Content: "Goroutines are lightweight concurrent functions in Go."},
		{ID: "duplicate", Content: "Goroutines are lightweight concurrent functions in Go."},
		{ID: "unrelated", Content: "Bananas are a good source of potassium and dietary fiber."},
	})

	results, err := s.Search(context.Background(), "goroutines concurrent", nil, Options{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearcher_PersistIndexThenLoadIndex_RehydratesCorpus(t *testing.T) {
	s, _ := newSearcherWithFixture(t)
	path := filepath.Join(t.TempDir(), "index", "search_index.json")

	require.NoError(t, s.PersistIndex(path))
	assert.FileExists(t, path)

	fresh := New(DefaultConfig(), vectorstore.New(nil, nil), nil)
	require.NoError(t, fresh.LoadIndex(path))

	results, err := fresh.Search(context.Background(), "goroutines", nil, Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "channels", results[0].DocID)
}

func TestSearcher_LoadIndex_MissingFileIsNotError(t *testing.T) {
	s := New(DefaultConfig(), vectorstore.New(nil, nil), nil)
	err := s.LoadIndex(filepath.Join(t.TempDir(), "index", "search_index.json"))
	assert.NoError(t, err)
}
