package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"ragqa/internal/domain"
)

// Limited throttles calls to a remote backend with a token bucket.
type Limited struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewLimited wraps next. requestsPerSecond <= 0 returns next unchanged.
func NewLimited(next Embedder, requestsPerSecond float64, burst int) Embedder {
	if requestsPerSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Dimension() int { return l.next.Dimension() }

func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Embed(ctx, text)
}

func (l *Limited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedQuery(ctx, text)
}

func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedBatch(ctx, texts)
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingFailure("rate limit wait", domain.ReasonCallFailed, true, err)
	}
	return nil
}
