package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RAG_EMBEDDER", "RAG_VECTOR_STORE", "RAG_GENERATOR", "RAG_PG_DSN",
		"RAG_SQLITE_PATH", "RAG_QDRANT_URL", "QDRANT_API_KEY", "RAG_INDEX_NAME",
		"RAG_TOP_K", "RAG_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
	assert.Equal(t, 10, cfg.Embedder.GroupSize)
	assert.Equal(t, "word", cfg.Chunker.Type)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "customer-support-rag", cfg.VectorStore.IndexName)
	assert.Equal(t, 100, cfg.VectorStore.BatchSize)
	assert.Equal(t, "none", cfg.Generator.Type)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestLoad_FileWithPartialSettings(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  dimension: 256
  openai:
    model: text-embedding-3-large
vector_store:
  type: sqlite
  sqlite:
    path: /tmp/rag.db
retrieval:
  top_k: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, 256, cfg.Embedder.Dimension)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "/tmp/rag.db", cfg.VectorStore.SQLite.Path)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize, "unset fields keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_VECTOR_STORE", "qdrant")
	t.Setenv("RAG_QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_API_KEY", "secret")
	t.Setenv("RAG_INDEX_NAME", "support")
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("RAG_GENERATOR", "ollama")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "secret", cfg.VectorStore.Qdrant.APIKey)
	assert.Equal(t, "support", cfg.VectorStore.IndexName)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "ollama", cfg.Generator.Type)
}

func TestLoad_InvalidTopK(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_TOP_K", "many")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "RAG_TOP_K")
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Chunker.Overlap = cfg.Chunker.ChunkSize
	cfg.VectorStore.Type = "pinecone"
	cfg.Generator.Type = "gemini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "overlap")
	assert.ErrorContains(t, err, `unknown vector store: "pinecone"`)
	assert.ErrorContains(t, err, `unknown generator: "gemini"`)
}

func TestLoad_DoesNotRequireCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_VECTOR_STORE", "postgres")
	t.Setenv("RAG_EMBEDDER", "openai")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Generator.Type = "openai"
	cfg.Generator.OpenAI.Model = "gpt-4o-mini"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "rag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RAGQA_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("RAGQA_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("RAGQA_TEST_DOTENV"))
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("RAGQA_TEST_DOTENV"))
}
