package embedding

import (
	"context"
	"errors"

	"ragqa/internal/domain"
	"ragqa/internal/lazy"
)

// Factory builds a backend. It runs on first use, never at construction.
type Factory func(ctx context.Context) (Embedder, error)

// Lazy defers building the backend until the first embedding call and shares
// the result across all callers for the life of the process.
type Lazy struct {
	name      string
	dimension int
	factory   Factory
	backend   lazy.Value[Embedder]
}

// NewLazy wraps factory. name and dimension are reported before the backend
// exists.
func NewLazy(name string, dimension int, factory Factory) *Lazy {
	return &Lazy{name: name, dimension: dimension, factory: factory}
}

func (l *Lazy) Name() string { return l.name }

func (l *Lazy) Dimension() int { return l.dimension }

// Initialized reports whether the backend has been built.
func (l *Lazy) Initialized() bool {
	_, ok := l.backend.Peek()
	return ok
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	b, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return b.Embed(ctx, text)
}

func (l *Lazy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	b, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return b.EmbedQuery(ctx, text)
}

func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return b.EmbedBatch(ctx, texts)
}

func (l *Lazy) get(ctx context.Context) (Embedder, error) {
	return l.backend.Get(ctx, func(ctx context.Context) (Embedder, error) {
		b, err := l.factory(ctx)
		if err == nil {
			return b, nil
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.EmbeddingFailure("initialize "+l.name+" embedder", domain.ReasonInitFailed, false, err)
	})
}
