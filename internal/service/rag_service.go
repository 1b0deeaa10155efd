// Package service wires chunking, embedding, storage and generation into the
// ingest and ask flows.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/generator"
	"ragqa/internal/vectorstore"
)

const (
	// EmptyStoreResponse is returned by Ask while nothing has been ingested.
	EmptyStoreResponse = "I don't have any documents to search through yet. Please upload some policy documents first."

	degradedPrefix = "Based on the uploaded documents, here are the most relevant sections:\n\n"
	degradedSuffix = "\n\n(Note: AI answer generation is not configured, showing retrieved context only)"
)

type Options struct {
	// TopK is the number of chunks retrieved per question.
	TopK int
	// EmbedGroupSize bounds concurrent embedding calls during ingestion.
	EmbedGroupSize int
}

type RAGService struct {
	chunker   domain.Chunker
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.AnswerGenerator
	opts      Options
	log       *slog.Logger
}

// NewRAGService builds the service. gen may be nil, in which case Ask returns
// the retrieved context instead of a generated answer.
func NewRAGService(c domain.Chunker, e domain.Embedder, s domain.VectorStore, gen domain.AnswerGenerator, opts Options, log *slog.Logger) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	if opts.EmbedGroupSize <= 0 {
		opts.EmbedGroupSize = embedding.DefaultGroupSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &RAGService{chunker: c, embedder: e, store: s, generator: gen, opts: opts, log: log}
}

// Ask answers message from the stored documents.
func (s *RAGService) Ask(ctx context.Context, message string) (domain.Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Answer{}, domain.Unsupported("ask", "no message provided")
	}

	s.log.DebugContext(ctx, "ask: checking store")
	n, err := s.store.DocumentCount(ctx)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("check store: %w", err)
	}
	if n == 0 {
		s.log.DebugContext(ctx, "ask: store is empty")
		return domain.Answer{Response: EmptyStoreResponse, Sources: []string{}}, nil
	}

	s.log.DebugContext(ctx, "ask: embedding query", "documents", n)
	vec, err := s.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed query: %w", err)
	}

	s.log.DebugContext(ctx, "ask: searching", "k", s.opts.TopK)
	results, err := s.store.SimilaritySearch(ctx, vec, s.opts.TopK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("search: %w", err)
	}

	s.log.DebugContext(ctx, "ask: assembling context", "results", len(results))
	contextText := AssembleContext(results)
	sources := Sources(results)

	if s.generator == nil {
		s.log.DebugContext(ctx, "ask: no generator configured, returning context")
		return domain.Answer{Response: degradedPrefix + contextText + degradedSuffix, Sources: sources}, nil
	}

	s.log.DebugContext(ctx, "ask: generating answer", "generator", s.generator.Name())
	resp, err := s.generator.Generate(ctx, generator.BuildPrompt(contextText, message))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	s.log.DebugContext(ctx, "ask: done")
	return domain.Answer{Response: resp, Sources: sources}, nil
}

// AssembleContext renders results as numbered document blocks separated by
// blank lines, in result order.
func AssembleContext(results []domain.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Document %d: %s]\n%s", i+1, r.Document.Metadata.Source, r.Document.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// Sources labels each result as "source (Chunk n)" with n counted from 1.
func Sources(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Metadata.Source + " (Chunk " + strconv.Itoa(r.Document.Metadata.ChunkIndex+1) + ")"
	}
	return out
}

// Ingest chunks, embeds and stores plain-text inputs. Inputs that are not
// .txt are skipped, except PDFs which are rejected with a hint.
func (s *RAGService) Ingest(ctx context.Context, inputs []domain.Input) (domain.IngestResult, error) {
	if len(inputs) == 0 {
		return domain.IngestResult{}, domain.Unsupported("ingest", "no files provided")
	}

	res := domain.IngestResult{FilesProcessed: []string{}}
	for _, in := range inputs {
		ext := strings.ToLower(filepath.Ext(in.Name))
		switch ext {
		case ".pdf":
			return res, domain.Unsupported("ingest", fmt.Sprintf("PDF files are not supported (%s). Please convert %s to a .txt file and upload it again", in.Name, in.Name))
		case ".txt":
		default:
			s.log.InfoContext(ctx, "skipping unsupported file", "file", in.Name)
			res.FilesSkipped = append(res.FilesSkipped, in.Name)
			continue
		}

		created, err := s.ingestFile(ctx, in)
		if err != nil {
			return res, fmt.Errorf("file %s: %w", in.Name, err)
		}
		res.TotalChunksCreated += created
		res.FilesProcessed = append(res.FilesProcessed, in.Name)
	}

	total, err := s.store.DocumentCount(ctx)
	if err != nil {
		return res, fmt.Errorf("count documents: %w", err)
	}
	res.Success = true
	res.TotalDocumentsInStore = total
	res.Message = fmt.Sprintf("Successfully processed %d file(s) into %d chunks", len(res.FilesProcessed), res.TotalChunksCreated)
	if len(res.FilesSkipped) > 0 {
		res.Message += fmt.Sprintf(" (%d skipped: only .txt files are supported)", len(res.FilesSkipped))
	}
	return res, nil
}

func (s *RAGService) ingestFile(ctx context.Context, in domain.Input) (int, error) {
	if enry.IsBinary(in.Content) {
		return 0, domain.Unsupported("ingest", fmt.Sprintf("File %s does not look like plain text", in.Name))
	}
	text := chunker.CleanText(string(in.Content))
	if text == "" {
		return 0, domain.Unsupported("ingest", fmt.Sprintf("File %s appears to be empty", in.Name))
	}

	chunks, err := s.chunker.Chunk(text, in.Name)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "chunked file", "file", in.Name, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	start := time.Now()
	vecs, err := embedding.BatchEmbed(ctx, s.embedder, texts, s.opts.EmbedGroupSize)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "generated embeddings", "file", in.Name, "count", len(vecs), "duration_ms", time.Since(start).Milliseconds())

	docs := make([]domain.StoredDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.StoredDocument{
			ID:        domain.DocumentID(c.Metadata.Source, c.Metadata.ChunkIndex),
			Content:   c.Content,
			Embedding: vecs[i],
			Metadata:  c.Metadata,
		}
	}
	if err := s.store.AddDocuments(ctx, docs); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *RAGService) DocumentCount(ctx context.Context) (int, error) {
	return s.store.DocumentCount(ctx)
}

func (s *RAGService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "cleared vector store")
	return nil
}
