package domain

import (
	"context"
	"strconv"
)

// ChunkMetadata locates a chunk inside its source document.
type ChunkMetadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
	// PageNumber is only set for paged source formats.
	PageNumber *int `json:"pageNumber,omitempty"`
}

// Chunk is a contiguous word-bounded slice of a source document.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// StoredDocument is a chunk persisted together with its embedding.
type StoredDocument struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// DocumentID builds the store identifier for a chunk. Re-ingesting the same
// source therefore overwrites its previous chunks.
func DocumentID(source string, chunkIndex int) string {
	return source + "-" + strconv.Itoa(chunkIndex)
}

// SearchResult represents a matching document with a relevance score.
type SearchResult struct {
	Document StoredDocument
	Score    float64
}

// Input is one plain-text ingestion input tagged with its source name.
type Input struct {
	Name    string
	Content []byte
}

// IngestResult summarizes an ingestion call.
type IngestResult struct {
	Success               bool     `json:"success"`
	Message               string   `json:"message"`
	TotalChunksCreated    int      `json:"totalChunksCreated"`
	TotalDocumentsInStore int      `json:"totalDocumentsInStore"`
	FilesProcessed        []string `json:"filesProcessed"`
	FilesSkipped          []string `json:"filesSkipped,omitempty"`
}

// Answer is the result of a question against the store.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// Chunker splits text into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(text, source string) ([]Chunk, error)
}

// Embedder converts free text into a fixed-dimension vector.
//
// EmbedQuery is used for user questions; backends without a distinct query
// mode treat it like Embed. EmbedBatch preserves order and either returns one
// vector per input or fails as a whole.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists documents and supports similarity search.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []StoredDocument) error
	// SimilaritySearch returns at most k documents, most similar first.
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]SearchResult, error)
	DocumentCount(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// AnswerGenerator turns a prompt into a text response.
type AnswerGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
