// Package storetest is a behavioural test suite every vector store backend
// runs against itself.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

// Dimension is the vector size used by the suite.
const Dimension = 4

// Doc builds a stored document for source/idx with the given vector.
func Doc(source string, idx int, content string, vec ...float32) domain.StoredDocument {
	return domain.StoredDocument{
		ID:        domain.DocumentID(source, idx),
		Content:   content,
		Embedding: vec,
		Metadata:  domain.ChunkMetadata{Source: source, ChunkIndex: idx},
	}
}

// Run exercises the domain.VectorStore contract. newStore must return an
// empty store of dimension Dimension.
func Run(t *testing.T, newStore func(t *testing.T) domain.VectorStore) {
	t.Run("EmptyStore", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		res, err := s.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("AddAndSearch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		page := 2
		paged := Doc("manual.txt", 1, "paged", 0, 1, 0, 0)
		paged.Metadata.PageNumber = &page

		require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{
			Doc("policy.txt", 0, "returns within 30 days", 1, 0, 0, 0),
			paged,
			Doc("policy.txt", 1, "mostly returns", 0.9, 0.1, 0, 0),
		}))

		n, err := s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		res, err := s.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "policy.txt-0", res[0].Document.ID)
		assert.Equal(t, "returns within 30 days", res[0].Document.Content)
		assert.Equal(t, "policy.txt", res[0].Document.Metadata.Source)
		assert.Equal(t, 0, res[0].Document.Metadata.ChunkIndex)
		assert.Nil(t, res[0].Document.Metadata.PageNumber)
		assert.InDelta(t, 1.0, res[0].Score, 1e-4)
		assert.Equal(t, "policy.txt-1", res[1].Document.ID)
		assert.Greater(t, res[0].Score, res[1].Score)

		res, err = s.SimilaritySearch(ctx, []float32{0, 2, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, res, 3, "k is a maximum")
		assert.Equal(t, "manual.txt-1", res[0].Document.ID)
		require.NotNil(t, res[0].Document.Metadata.PageNumber)
		assert.Equal(t, 2, *res[0].Document.Metadata.PageNumber)
		assert.InDelta(t, 0.0, res[2].Score, 1e-4, "orthogonal vectors score zero")
	})

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := []domain.StoredDocument{
			Doc("faq.txt", 0, "old answer", 1, 0, 0, 0),
			Doc("faq.txt", 1, "other", 0, 0, 1, 0),
		}
		require.NoError(t, s.AddDocuments(ctx, first))
		require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{
			Doc("faq.txt", 0, "new answer", 1, 0, 0, 0),
			Doc("faq.txt", 1, "other", 0, 0, 1, 0),
		}))

		n, err := s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		res, err := s.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "new answer", res[0].Document.Content)
	})

	t.Run("LargeInputIsBatched", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		docs := make([]domain.StoredDocument, 0, 250)
		for i := 0; i < 250; i++ {
			docs = append(docs, Doc("big.txt", i, fmt.Sprintf("chunk %d", i), 1, float32(i), 0, 0))
		}
		require.NoError(t, s.AddDocuments(ctx, docs))

		n, err := s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 250, n)

		for _, k := range []int{1, 3, 7} {
			res, err := s.SimilaritySearch(ctx, []float32{1, 1, 0, 0}, k)
			require.NoError(t, err)
			assert.Len(t, res, k)
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{Doc("a.txt", 0, "a", 1, 0, 0, 0)}))

		err := s.AddDocuments(ctx, []domain.StoredDocument{Doc("b.txt", 0, "b", 1, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		_, err = s.SimilaritySearch(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{
			Doc("a.txt", 0, "a", 1, 0, 0, 0),
			Doc("a.txt", 1, "b", 0, 1, 0, 0),
		}))
		require.NoError(t, s.Clear(ctx))

		n, err := s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{Doc("c.txt", 0, "c", 0, 0, 1, 0)}))
		n, err = s.DocumentCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
