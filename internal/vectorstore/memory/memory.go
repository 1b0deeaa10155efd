package memory

import (
	"context"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Documents keep the position of their first insertion, which breaks score ties.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	docs      map[string]domain.StoredDocument
}

func NewStorage() *Storage {
	return &Storage{docs: make(map[string]domain.StoredDocument)}
}

// AddDocuments upserts docs by ID. A dimension mismatch rejects the whole call.
func (s *Storage) AddDocuments(ctx context.Context, docs []domain.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.CheckDimension(docs, s.dimension)
	if err != nil {
		return err
	}
	s.dimension = dim
	for _, d := range docs {
		if _, ok := s.docs[d.ID]; !ok {
			s.order = append(s.order, d.ID)
		}
		d.Embedding = append([]float32(nil), d.Embedding...)
		s.docs[d.ID] = d
	}
	return nil
}

func (s *Storage) SimilaritySearch(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.StoredDocument, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, s.docs[id])
	}
	results, err := vectorstore.TopK(query, docs, k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Document.Embedding = append([]float32(nil), results[i].Document.Embedding...)
	}
	return results, nil
}

func (s *Storage) DocumentCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Clear removes every document and forgets the dimension.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.order = nil
	s.docs = make(map[string]domain.StoredDocument)
	return nil
}

func (s *Storage) Close() error { return nil }

var _ vectorstore.Storage = (*Storage)(nil)
