package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortitude-core/fortitude/internal/model"
)

func doc(id string, embedding []float32, contentType string) model.VectorDocument {
	return model.VectorDocument{
		ID:        id,
		Content:   "content for " + id,
		Embedding: embedding,
		Metadata:  model.VectorDocumentMetadata{ContentType: contentType},
	}
}

func TestStore_StoreThenRetrieveByID_RoundTrips(t *testing.T) {
	s := New(nil, nil)
	d := doc("a", []float32{1, 0, 0}, "note")

	require.NoError(t, s.StoreDocument(context.Background(), d))

	got, ok := s.RetrieveByID(context.Background(), "a")
	require.True(t, ok)
	assert.Equal(t, "content for a", got.Content)
	assert.False(t, got.StoredAt.IsZero())
}

func TestStore_StoreDocument_RejectsEmptyID(t *testing.T) {
	s := New(nil, nil)
	err := s.StoreDocument(context.Background(), model.VectorDocument{Embedding: []float32{1, 2}})
	assert.Error(t, err)
}

func TestStore_RetrieveSimilar_RanksByCosineSimilarityDescending(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocuments(ctx, []model.VectorDocument{
		doc("exact", []float32{1, 0, 0}, "a"),
		doc("orthogonal", []float32{0, 1, 0}, "a"),
		doc("close", []float32{0.9, 0.1, 0}, "a"),
	}))

	matches, err := s.RetrieveSimilar(ctx, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].Document.ID)
	assert.Equal(t, 0, matches[0].Rank)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "close", matches[1].Document.ID)
	assert.Equal(t, "orthogonal", matches[2].Document.ID)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-9)
}

func TestStore_RetrieveSimilar_RespectsMinScoreAndLimit(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocuments(ctx, []model.VectorDocument{
		doc("exact", []float32{1, 0}, "a"),
		doc("orthogonal", []float32{0, 1}, "a"),
	}))

	matches, err := s.RetrieveSimilar(ctx, []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "exact", matches[0].Document.ID)
}

func TestStore_RetrieveSimilar_RejectsEmptyQueryEmbedding(t *testing.T) {
	s := New(nil, nil)
	_, err := s.RetrieveSimilar(context.Background(), nil, 10, 0)
	assert.Error(t, err)
}

func TestStore_UpdateDocument_PreservesStoredAtWhenUnset(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocument(ctx, doc("a", []float32{1}, "a")))

	original, _ := s.RetrieveByID(ctx, "a")

	updated := doc("a", []float32{2}, "b")
	require.NoError(t, s.UpdateDocument(ctx, updated))

	got, ok := s.RetrieveByID(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "b", got.Metadata.ContentType)
	assert.Equal(t, original.StoredAt, got.StoredAt)
}

func TestStore_UpdateDocument_MissingIDReturnsError(t *testing.T) {
	s := New(nil, nil)
	err := s.UpdateDocument(context.Background(), doc("missing", []float32{1}, "a"))
	assert.Error(t, err)
}

func TestStore_DeleteDocument_IsIdempotent(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocument(ctx, doc("a", []float32{1}, "a")))

	require.NoError(t, s.DeleteDocument(ctx, "a"))
	require.NoError(t, s.DeleteDocument(ctx, "a"))

	_, ok := s.RetrieveByID(ctx, "a")
	assert.False(t, ok)
}

func TestStore_DeleteBatch_RemovesAllGivenIDs(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocuments(ctx, []model.VectorDocument{
		doc("a", []float32{1}, "a"),
		doc("b", []float32{1}, "a"),
		doc("c", []float32{1}, "a"),
	}))

	require.NoError(t, s.DeleteBatch(ctx, []string{"a", "c"}))

	stats := s.GetStats(ctx)
	assert.Equal(t, 1, stats.DocumentCount)
	_, ok := s.RetrieveByID(ctx, "b")
	assert.True(t, ok)
}

func TestStore_GetStats_CountsByContentType(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StoreDocuments(ctx, []model.VectorDocument{
		doc("a", []float32{1}, "note"),
		doc("b", []float32{1}, "note"),
		doc("c", []float32{1}, "snippet"),
	}))

	stats := s.GetStats(ctx)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 2, stats.ContentTypes["note"])
	assert.Equal(t, 1, stats.ContentTypes["snippet"])
}
