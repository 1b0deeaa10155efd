// Package sqlite stores vectors in a single SQLite table and ranks them in
// process. It suits small corpora that should survive restarts without a
// database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"ragqa/internal/domain"
	"ragqa/internal/lazy"
	"ragqa/internal/vectorstore"
)

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

type Config struct {
	// Path is the database file. It is created on first use.
	Path      string
	Table     string
	BatchSize int
}

// Storage is a vector store backed by SQLite. The connection is opened on
// first use.
type Storage struct {
	cfg   Config
	table string
	conn  lazy.Value[*sqlx.DB]

	mu        sync.Mutex
	dimension int
}

type row struct {
	ID         string        `db:"id"`
	Content    string        `db:"content"`
	Source     string        `db:"source"`
	ChunkIndex int           `db:"chunk_index"`
	PageNumber sql.NullInt64 `db:"page_number"`
	Embedding  []byte        `db:"embedding"`
}

func NewStorage(cfg Config) *Storage {
	if cfg.Table == "" {
		cfg.Table = vectorstore.DefaultIndexName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = vectorstore.DefaultBatchSize
	}
	return &Storage{cfg: cfg, table: quoteIdent(cfg.Table)}
}

func (s *Storage) db(ctx context.Context) (*sqlx.DB, error) {
	return s.conn.Get(ctx, s.open)
}

func (s *Storage) open(ctx context.Context) (*sqlx.DB, error) {
	if s.cfg.Path == "" {
		return nil, domain.ConfigMissing("sqlite store", "RAG_SQLITE_PATH")
	}
	if dir := filepath.Dir(s.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, domain.StoreFailure("sqlite open", fmt.Errorf("creating data directory: %w", err))
		}
	}
	db, err := sqlx.Open(driverName, s.cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, domain.StoreFailure("sqlite open", err)
	}
	// One writer at a time keeps SQLITE_BUSY away from concurrent upserts.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, domain.StoreFailure("sqlite open", err)
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page_number INTEGER,
		embedding BLOB NOT NULL
	)`, s.table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, domain.StoreFailure("sqlite schema", err)
	}

	var size sql.NullInt64
	if err := db.GetContext(ctx, &size, fmt.Sprintf("SELECT length(embedding) FROM %s LIMIT 1", s.table)); err != nil && err != sql.ErrNoRows {
		db.Close()
		return nil, domain.StoreFailure("sqlite schema", err)
	}
	s.mu.Lock()
	s.dimension = int(size.Int64 / 4)
	s.mu.Unlock()
	return db, nil
}

// AddDocuments upserts docs by ID, one transaction per batch. On failure the
// returned *vectorstore.BatchError says how many batches were committed.
func (s *Storage) AddDocuments(ctx context.Context, docs []domain.StoredDocument) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	dim, err := vectorstore.CheckDimension(docs, s.dimension)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (id, content, source, chunk_index, page_number, embedding)
		VALUES (:id, :content, :source, :chunk_index, :page_number, :embedding)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			source = excluded.source,
			chunk_index = excluded.chunk_index,
			page_number = excluded.page_number,
			embedding = excluded.embedding`, s.table)

	return vectorstore.UpsertBatches(ctx, vectorstore.Dedupe(docs), s.cfg.BatchSize, func(ctx context.Context, batch []domain.StoredDocument) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return domain.StoreFailure("sqlite upsert", err)
		}
		defer tx.Rollback()
		for _, d := range batch {
			if _, err := tx.NamedExecContext(ctx, upsert, toRow(d)); err != nil {
				return domain.StoreFailure("sqlite upsert", fmt.Errorf("document %s: %w", d.ID, err))
			}
		}
		if err := tx.Commit(); err != nil {
			return domain.StoreFailure("sqlite upsert", err)
		}
		// The dimension is fixed once rows exist.
		s.mu.Lock()
		if s.dimension == 0 {
			s.dimension = dim
		}
		s.mu.Unlock()
		return nil
	})
}

// SimilaritySearch loads every row in insertion order and ranks by cosine
// similarity.
func (s *Storage) SimilaritySearch(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []row
	q := fmt.Sprintf("SELECT id, content, source, chunk_index, page_number, embedding FROM %s ORDER BY rowid", s.table)
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, domain.StoreFailure("sqlite search", err)
	}
	docs := make([]domain.StoredDocument, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return vectorstore.TopK(query, docs, k)
}

func (s *Storage) DocumentCount(ctx context.Context) (int, error) {
	db, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)); err != nil {
		return 0, domain.StoreFailure("sqlite count", err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return domain.StoreFailure("sqlite clear", err)
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

// Close closes the connection if one was opened.
func (s *Storage) Close() error {
	db, ok := s.conn.Reset()
	if !ok {
		return nil
	}
	return db.Close()
}

func toRow(d domain.StoredDocument) row {
	r := row{
		ID:         d.ID,
		Content:    d.Content,
		Source:     d.Metadata.Source,
		ChunkIndex: d.Metadata.ChunkIndex,
		Embedding:  encodeVector(d.Embedding),
	}
	if d.Metadata.PageNumber != nil {
		r.PageNumber = sql.NullInt64{Int64: int64(*d.Metadata.PageNumber), Valid: true}
	}
	return r
}

func (r row) toDocument() domain.StoredDocument {
	d := domain.StoredDocument{
		ID:        r.ID,
		Content:   r.Content,
		Embedding: decodeVector(r.Embedding),
		Metadata:  domain.ChunkMetadata{Source: r.Source, ChunkIndex: r.ChunkIndex},
	}
	if r.PageNumber.Valid {
		p := int(r.PageNumber.Int64)
		d.Metadata.PageNumber = &p
	}
	return d
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ vectorstore.Storage = (*Storage)(nil)
