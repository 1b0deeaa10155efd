// Package vectorstore contains the pieces shared by the vector store
// backends: cosine ranking, batched upserts and dimension checks.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ragqa/internal/domain"
)

const (
	// DefaultTopK is used when a search asks for k <= 0.
	DefaultTopK = 3
	// DefaultBatchSize is the number of documents written per backend call.
	DefaultBatchSize = 100
	// DefaultIndexName names the table or collection when none is configured.
	DefaultIndexName = "customer-support-rag"
)

// Storage persists vectors and supports similarity search.
type Storage = domain.VectorStore

// CosineSimilarity is the dot product of a and b divided by the product of
// their magnitudes. A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// TopK ranks docs against query and returns at most k results, most similar
// first. Equal scores keep the order of docs.
func TopK(query []float32, docs []domain.StoredDocument, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	results := make([]domain.SearchResult, 0, len(docs))
	for _, d := range docs {
		score, err := CosineSimilarity(query, d.Embedding)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.ID, err)
		}
		results = append(results, domain.SearchResult{Document: d, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// CheckDimension verifies every document has dimension dim. dim <= 0 takes
// the dimension of the first document. It returns the dimension in effect.
func CheckDimension(docs []domain.StoredDocument, dim int) (int, error) {
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return dim, domain.Unsupported("add documents", fmt.Sprintf("document %s has no embedding", d.ID))
		}
		if dim <= 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			return dim, fmt.Errorf("document %s: %w: got %d, store has %d", d.ID, domain.ErrDimensionMismatch, len(d.Embedding), dim)
		}
	}
	return dim, nil
}

// BatchError reports which sub-batch of an upsert failed. Batches before
// Batch were committed and stay visible.
type BatchError struct {
	Batch     int
	Committed int
	Total     int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upsert batch %d of %d failed (%d committed): %v", e.Batch+1, e.Total, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// UpsertBatches calls write for consecutive slices of at most size documents
// and stops at the first failure.
func UpsertBatches(ctx context.Context, docs []domain.StoredDocument, size int, write func(context.Context, []domain.StoredDocument) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	total := (len(docs) + size - 1) / size
	for b := 0; b < total; b++ {
		if err := ctx.Err(); err != nil {
			return &BatchError{Batch: b, Committed: b, Total: total, Err: err}
		}
		start := b * size
		end := min(start+size, len(docs))
		if err := write(ctx, docs[start:end]); err != nil {
			return &BatchError{Batch: b, Committed: b, Total: total, Err: err}
		}
	}
	return nil
}

// Dedupe keeps the last occurrence of every ID, in first-occurrence order.
func Dedupe(docs []domain.StoredDocument) []domain.StoredDocument {
	pos := make(map[string]int, len(docs))
	out := make([]domain.StoredDocument, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
