// Package embedding holds the machinery shared by all embedding backends:
// lazy initialization, sub-batched concurrent embedding, request throttling
// and dimension adaptation.
package embedding

import "ragqa/internal/domain"

// DefaultDimension is the vector size shared by the local backend and, after
// adaptation, by the remote ones.
const DefaultDimension = 384

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder
