package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// OllamaEmbedderConfig holds configuration for embeddings served by Ollama.
type OllamaEmbedderConfig struct {
	Host           string `yaml:"host"`
	Model          string `yaml:"model"`
	QueryPrefix    string `yaml:"query_prefix"`
	DocumentPrefix string `yaml:"document_prefix"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type"`
	// Dimension is the vector size stored; remote vectors are truncated to it.
	Dimension int `yaml:"dimension"`
	// GroupSize is the number of chunks embedded concurrently during ingestion.
	GroupSize         int                  `yaml:"group_size"`
	RequestsPerSecond float64              `yaml:"requests_per_second"`
	Burst             int                  `yaml:"burst"`
	OpenAI            OpenAIEmbedderConfig `yaml:"openai"`
	Ollama            OllamaEmbedderConfig `yaml:"ollama"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type string `yaml:"type"`
	// IndexName is the table or collection name.
	IndexName string         `yaml:"index_name"`
	BatchSize int            `yaml:"batch_size"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Qdrant    QdrantConfig   `yaml:"qdrant"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the answer generator. Type "none" returns the
// retrieved context without generating an answer.
type GeneratorConfig struct {
	Type   string                `yaml:"type"`
	OpenAI OpenAIGeneratorConfig `yaml:"openai"`
	Ollama OllamaGeneratorConfig `yaml:"ollama"`
}

type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

type OllamaGeneratorConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

// LoadEnvFile loads variables from a .env file. A missing file is not an error
// and variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied before validation.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); errors.Is(err, os.ErrNotExist) {
		if err := Save(userPath, defaultConfig()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks names and chunk parameters. Credentials are checked by the
// backends on first use.
func (c *AppConfig) Validate() error {
	var errs []error
	if !oneOf(c.Embedder.Type, "local", "openai", "ollama") {
		errs = append(errs, fmt.Errorf("unknown embedder: %q", c.Embedder.Type))
	}
	if c.Embedder.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedder.dimension must be positive, got %d", c.Embedder.Dimension))
	}
	switch c.Chunker.Type {
	case "word":
		if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
			errs = append(errs, fmt.Errorf("chunker: need 0 <= overlap < chunk_size, got overlap=%d chunk_size=%d", c.Chunker.Overlap, c.Chunker.ChunkSize))
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 {
			errs = append(errs, fmt.Errorf("chunker: sentences_per_chunk must be positive, got %d", c.Chunker.SentencesPerChunk))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chunker: %q", c.Chunker.Type))
	}
	if !oneOf(c.VectorStore.Type, "memory", "sqlite", "postgres", "qdrant") {
		errs = append(errs, fmt.Errorf("unknown vector store: %q", c.VectorStore.Type))
	}
	if !oneOf(c.Generator.Type, "none", "openai", "ollama") {
		errs = append(errs, fmt.Errorf("unknown generator: %q", c.Generator.Type))
	}
	if !oneOf(c.Log.Format, "json", "text") {
		errs = append(errs, fmt.Errorf("unknown log format: %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "local", Dimension: 384, GroupSize: 10},
		Chunker:     ChunkerConfig{Type: "word", ChunkSize: 500, Overlap: 50, SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{Type: "memory", IndexName: "customer-support-rag", BatchSize: 100},
		Generator:   GeneratorConfig{Type: "none"},
		Retrieval:   RetrievalConfig{TopK: 3},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	setDefault(&cfg.Embedder.Type, def.Embedder.Type)
	setDefault(&cfg.Embedder.Dimension, def.Embedder.Dimension)
	setDefault(&cfg.Embedder.GroupSize, def.Embedder.GroupSize)
	setDefault(&cfg.Chunker.Type, def.Chunker.Type)
	setDefault(&cfg.Chunker.ChunkSize, def.Chunker.ChunkSize)
	setDefault(&cfg.Chunker.SentencesPerChunk, def.Chunker.SentencesPerChunk)
	setDefault(&cfg.VectorStore.Type, def.VectorStore.Type)
	setDefault(&cfg.VectorStore.IndexName, def.VectorStore.IndexName)
	setDefault(&cfg.VectorStore.BatchSize, def.VectorStore.BatchSize)
	setDefault(&cfg.Generator.Type, def.Generator.Type)
	setDefault(&cfg.Retrieval.TopK, def.Retrieval.TopK)
	setDefault(&cfg.Log.Level, def.Log.Level)
	setDefault(&cfg.Log.Format, def.Log.Format)
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *AppConfig) error {
	overrides := map[string]*string{
		"RAG_EMBEDDER":     &cfg.Embedder.Type,
		"RAG_VECTOR_STORE": &cfg.VectorStore.Type,
		"RAG_GENERATOR":    &cfg.Generator.Type,
		"RAG_PG_DSN":       &cfg.VectorStore.Postgres.DSN,
		"RAG_SQLITE_PATH":  &cfg.VectorStore.SQLite.Path,
		"RAG_QDRANT_URL":   &cfg.VectorStore.Qdrant.URL,
		"QDRANT_API_KEY":   &cfg.VectorStore.Qdrant.APIKey,
		"RAG_INDEX_NAME":   &cfg.VectorStore.IndexName,
		"RAG_LOG_LEVEL":    &cfg.Log.Level,
	}
	for env, dst := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("RAG_TOP_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			return fmt.Errorf("RAG_TOP_K must be a positive integer, got %q", v)
		}
		cfg.Retrieval.TopK = k
	}
	return nil
}

func setDefault[T comparable](dst *T, def T) {
	var zero T
	if *dst == zero {
		*dst = def
	}
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
