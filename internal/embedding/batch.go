package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultGroupSize bounds how many embedding requests are in flight at once.
const DefaultGroupSize = 10

// BatchEmbed embeds texts in groups of groupSize. Texts inside a group are
// embedded concurrently, groups run one after another. The output has the
// same order and length as texts; on any failure nothing is returned.
func BatchEmbed(ctx context.Context, e Embedder, texts []string, groupSize int) ([][]float32, error) {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += groupSize {
		end := min(start+groupSize, len(texts))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := e.Embed(gctx, texts[i])
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("embedding group %d (texts %d-%d): %w", start/groupSize, start, end-1, err)
		}
	}
	return out, nil
}
