package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ragqa/internal/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// ErrInvalidChunking is returned for a chunk size or overlap that cannot
// produce progress. It carries the unsupported input kind.
var ErrInvalidChunking = errors.New("invalid chunking window")

var (
	spaceRunRe   = regexp.MustCompile(`\s+`)
	newlineRunRe = regexp.MustCompile(`\n+`)
)

// CleanText collapses whitespace runs to single spaces, newline runs to a
// single newline, and trims the result. It is lossy: the original whitespace
// layout cannot be recovered.
func CleanText(text string) string {
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = newlineRunRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// WordChunker splits text into chunks of ChunkSize words where consecutive
// chunks share Overlap words.
type WordChunker struct {
	ChunkSize int
	Overlap   int
}

// NewWordChunker validates the window parameters.
func NewWordChunker(chunkSize, overlap int) (*WordChunker, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WordChunker{ChunkSize: chunkSize, Overlap: overlap}, nil
}

// Chunk implements domain.Chunker.
func (c *WordChunker) Chunk(text, source string) ([]domain.Chunk, error) {
	return ChunkText(text, c.ChunkSize, c.Overlap, source)
}

// ChunkText splits text on whitespace and emits a chunk every chunkSize words
// and at the final word. After every emission except the last, the next
// buffer starts with the trailing overlap words of the emitted one.
func ChunkText(text string, chunkSize, overlap int, source string) ([]domain.Chunk, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, expectedChunks(len(words), chunkSize, overlap))
	buf := make([]string, 0, chunkSize)
	idx := 0
	for i, w := range words {
		buf = append(buf, w)
		last := i == len(words)-1
		if len(buf) < chunkSize && !last {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Content:  strings.Join(buf, " "),
			Metadata: domain.ChunkMetadata{Source: source, ChunkIndex: idx},
		})
		if last {
			break
		}
		tail := buf[len(buf)-overlap:]
		buf = append(make([]string, 0, chunkSize), tail...)
		idx++
	}
	return chunks, nil
}

func expectedChunks(words, chunkSize, overlap int) int {
	if words <= chunkSize {
		return 1
	}
	step := chunkSize - overlap
	return (words - overlap + step - 1) / step
}

func validateWindow(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return invalidWindow(fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, chunkSize))
	}
	if overlap < 0 || overlap >= chunkSize {
		return invalidWindow(fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunking, chunkSize, overlap))
	}
	return nil
}

func invalidWindow(err error) error {
	return &domain.Error{Kind: domain.KindUnsupportedInput, Op: "chunk", Err: err}
}
