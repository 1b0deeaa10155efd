// Package ollama embeds text with a model served by a local Ollama instance.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
)

const (
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for Ollama embeddings.
type Config struct {
	Host  string
	Model string
	// QueryPrefix and DocumentPrefix mark the task for models trained with
	// instruction prefixes, e.g. "search_query: " and "search_document: ".
	QueryPrefix    string
	DocumentPrefix string
	Dimension      int
	Timeout        time.Duration
}

// Client wraps the Ollama API client for generating embeddings.
type Client struct {
	cfg    Config
	client *api.Client
}

// NewClient creates a new Ollama embeddings client. No request is made.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &Client{
		cfg:    cfg,
		client: api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
	}, nil
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Dimension() int { return c.cfg.Dimension }

// Embed embeds text in document mode.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{c.cfg.DocumentPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedQuery embeds text in query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{c.cfg.QueryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in document mode with a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = c.cfg.DocumentPrefix + t
	}
	return c.embed(ctx, input)
}

func (c *Client) embed(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.cfg.Model, Input: input})
	if err != nil {
		return nil, domain.EmbeddingFailure("ollama embed", domain.ReasonCallFailed, isTransient(err), err)
	}
	if len(resp.Embeddings) != len(input) {
		return nil, domain.EmbeddingFailure("ollama embed", domain.ReasonCallFailed, true,
			fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Embeddings)))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		vec, err := embedding.AdaptDimension(v, c.cfg.Dimension)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// isTransient treats a missing model (404) and bad requests as permanent.
func isTransient(err error) bool {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

var _ embedding.Embedder = (*Client)(nil)
