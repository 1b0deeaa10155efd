package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/storetest"
)

func TestStorage_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		return NewStorage()
	})
}

func TestStorage_ClearForgetsDimension(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{storetest.Doc("a.txt", 0, "a", 1, 0, 0, 0)}))
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{storetest.Doc("a.txt", 0, "a", 1, 0)}))
	res, err := s.SimilaritySearch(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestStorage_DoesNotAliasCallerSlices(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	vec := []float32{1, 0}
	require.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{{ID: "a", Embedding: vec}}))
	vec[0] = -1

	res, err := s.SimilaritySearch(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)

	res[0].Document.Embedding[0] = 42
	again, err := s.SimilaritySearch(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0].Document.Embedding[0])
}

func TestStorage_RejectsWholeCallOnMismatch(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	err := s.AddDocuments(ctx, []domain.StoredDocument{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := s.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_ConcurrentAccess(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				doc := storetest.Doc(fmt.Sprintf("w%d.txt", w), i, "x", 1, float32(i), 0, 0)
				assert.NoError(t, s.AddDocuments(ctx, []domain.StoredDocument{doc}))
				_, err := s.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 3)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	n, err := s.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}

func TestStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStorage()
	assert.ErrorIs(t, s.AddDocuments(ctx, nil), context.Canceled)
	_, err := s.SimilaritySearch(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
