// Package ollama generates answers with a model served by Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

const (
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "llama3.2:3b"
	DefaultTimeout = 5 * time.Minute
)

type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *api.Client
}

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
	return &Client{cfg: cfg, client: api.NewClient(u, &http.Client{Timeout: cfg.Timeout})}, nil
}

func (c *Client) Name() string { return "ollama:" + c.cfg.Model }

// Generate asks for a single non-streamed response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: &stream}
	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", domain.GenerationFailure("ollama generate", err)
	}
	return strings.TrimSpace(out.String()), nil
}

var _ generator.Generator = (*Client)(nil)
