// Package app assembles the configured components into a RAG service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/local"
	ollamaemb "ragqa/internal/embedding/ollama"
	openaiemb "ragqa/internal/embedding/openai"
	ollamagen "ragqa/internal/generator/ollama"
	openaigen "ragqa/internal/generator/openai"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/postgres"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// Context owns the long-lived components shared by every request. The
// embedder and store connect on first use.
type Context struct {
	Config    *config.AppConfig
	Logger    *slog.Logger
	Embedder  *embedding.Lazy
	Store     domain.VectorStore
	Generator domain.AnswerGenerator
	Service   *service.RAGService
}

func New(cfg *config.AppConfig, log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.Default()
	}
	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb := NewEmbedder(cfg.Embedder)
	store, err := NewStore(cfg.VectorStore, cfg.Embedder.Dimension)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg.Generator, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	svc := service.NewRAGService(ch, emb, store, gen, service.Options{
		TopK:           cfg.Retrieval.TopK,
		EmbedGroupSize: cfg.Embedder.GroupSize,
	}, log)

	log.Debug("components assembled",
		"embedder", emb.Name(),
		"dimension", emb.Dimension(),
		"store", cfg.VectorStore.Type,
		"generator", cfg.Generator.Type,
	)
	return &Context{Config: cfg, Logger: log, Embedder: emb, Store: store, Generator: gen, Service: svc}, nil
}

// Close releases the store connection.
func (c *Context) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

func NewChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "word", "":
		return chunker.NewWordChunker(cfg.ChunkSize, cfg.Overlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

// NewEmbedder returns a lazily built embedder. Remote backends are throttled
// when requests_per_second is set.
func NewEmbedder(cfg config.EmbedderConfig) *embedding.Lazy {
	name := cfg.Type
	if name == "" {
		name = "local"
	}
	return embedding.NewLazy(name, cfg.Dimension, func(ctx context.Context) (embedding.Embedder, error) {
		switch name {
		case "local":
			return local.NewEmbedder(cfg.Dimension), nil
		case "openai":
			c, err := openaiemb.NewClient(openaiemb.Config{
				BaseURL:    cfg.OpenAI.BaseURL,
				APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
				Model:      cfg.OpenAI.Model,
				Timeout:    seconds(cfg.OpenAI.TimeoutSecs),
				Dimension:  cfg.Dimension,
				MaxRetries: maxRetries(cfg.OpenAI.MaxRetries),
			})
			if err != nil {
				return nil, err
			}
			return embedding.NewLimited(c, cfg.RequestsPerSecond, cfg.Burst), nil
		case "ollama":
			c, err := ollamaemb.NewClient(ollamaemb.Config{
				Host:           cfg.Ollama.Host,
				Model:          cfg.Ollama.Model,
				QueryPrefix:    cfg.Ollama.QueryPrefix,
				DocumentPrefix: cfg.Ollama.DocumentPrefix,
				Dimension:      cfg.Dimension,
				Timeout:        seconds(cfg.Ollama.TimeoutSecs),
			})
			if err != nil {
				return nil, err
			}
			return embedding.NewLimited(c, cfg.RequestsPerSecond, cfg.Burst), nil
		default:
			return nil, domain.Unsupported("embedder", "unknown embedder "+name)
		}
	})
}

// NewStore builds the configured store without connecting to it.
func NewStore(cfg config.VectorStoreConfig, dimension int) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "sqlite":
		return sqlite.NewStorage(sqlite.Config{
			Path:      cfg.SQLite.Path,
			Table:     cfg.IndexName,
			BatchSize: cfg.BatchSize,
		}), nil
	case "postgres":
		return postgres.NewStorage(postgres.Config{
			DSN:       cfg.Postgres.DSN,
			Table:     cfg.IndexName,
			Dimension: dimension,
			BatchSize: cfg.BatchSize,
		}), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.IndexName,
			Dimension:  dimension,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
			BatchSize:  cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// NewGenerator returns nil when answers should not be generated. A missing
// credential is logged and also yields nil, so Ask degrades to returning the
// retrieved context.
func NewGenerator(cfg config.GeneratorConfig, log *slog.Logger) (domain.AnswerGenerator, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "openai":
		c, err := openaigen.NewClient(openaigen.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     seconds(cfg.OpenAI.TimeoutSecs),
		})
		if errors.Is(err, domain.ErrConfigurationMissing) {
			log.Warn("answer generation disabled", "generator", cfg.Type, "error", err)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		c, err := ollamagen.NewClient(ollamagen.Config{
			Host:    cfg.Ollama.Host,
			Model:   cfg.Ollama.Model,
			Timeout: seconds(cfg.Ollama.TimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// maxRetries maps the config's "unset" zero to the client default.
func maxRetries(n int) int {
	if n == 0 {
		return openaiemb.DefaultMaxRetries
	}
	return max(n, 0)
}
