// Package postgres stores vectors in PostgreSQL with the pgvector extension
// and lets the database rank them.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"ragqa/internal/domain"
	"ragqa/internal/lazy"
	"ragqa/internal/vectorstore"
)

type Config struct {
	DSN   string
	Table string
	// Dimension sizes the vector column and must match the embedder.
	Dimension int
	BatchSize int
}

// Storage is a pgvector-backed store. The pool is created, and the schema
// ensured, on first use.
type Storage struct {
	cfg   Config
	table string
	pool  lazy.Value[*pgxpool.Pool]
}

func NewStorage(cfg Config) *Storage {
	if cfg.Table == "" {
		cfg.Table = vectorstore.DefaultIndexName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = vectorstore.DefaultBatchSize
	}
	return &Storage{cfg: cfg, table: pgx.Identifier{cfg.Table}.Sanitize()}
}

func (s *Storage) conn(ctx context.Context) (*pgxpool.Pool, error) {
	return s.pool.Get(ctx, s.open)
}

func (s *Storage) open(ctx context.Context) (*pgxpool.Pool, error) {
	if s.cfg.DSN == "" {
		return nil, domain.ConfigMissing("postgres store", "RAG_PG_DSN")
	}
	if s.cfg.Dimension <= 0 {
		return nil, domain.ConfigMissing("postgres store", "vector dimension")
	}
	pool, err := pgxpool.New(ctx, s.cfg.DSN)
	if err != nil {
		return nil, domain.StoreFailure("postgres connect", fmt.Errorf("failed to create connection pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.StoreFailure("postgres connect", fmt.Errorf("failed to ping database: %w", err))
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			page_number INTEGER,
			embedding vector(%d) NOT NULL
		)`, s.table, s.cfg.Dimension),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, domain.StoreFailure("postgres schema", err)
		}
	}
	return pool, nil
}

// AddDocuments upserts docs by ID. Each batch is sent as one pgx.Batch inside
// its own transaction.
func (s *Storage) AddDocuments(ctx context.Context, docs []domain.StoredDocument) error {
	pool, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := vectorstore.CheckDimension(docs, s.cfg.Dimension); err != nil {
		return err
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (id, content, source, chunk_index, page_number, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			chunk_index = EXCLUDED.chunk_index,
			page_number = EXCLUDED.page_number,
			embedding = EXCLUDED.embedding`, s.table)

	return vectorstore.UpsertBatches(ctx, vectorstore.Dedupe(docs), s.cfg.BatchSize, func(ctx context.Context, docs []domain.StoredDocument) error {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, d := range docs {
				batch.Queue(upsert,
					d.ID,
					d.Content,
					d.Metadata.Source,
					d.Metadata.ChunkIndex,
					d.Metadata.PageNumber,
					pgvector.NewVector(d.Embedding),
				)
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return domain.StoreFailure("postgres upsert", err)
		}
		return nil
	})
}

// SimilaritySearch orders by cosine distance; rows at equal distance keep
// insertion order.
func (s *Storage) SimilaritySearch(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	pool, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if len(query) != s.cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d, store has %d", domain.ErrDimensionMismatch, len(query), s.cfg.Dimension)
	}
	if k <= 0 {
		k = vectorstore.DefaultTopK
	}

	q := fmt.Sprintf(`SELECT id, content, source, chunk_index, page_number, embedding::real[],
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`, s.table)
	rows, err := pool.Query(ctx, q, pgvector.NewVector(query), k)
	if err != nil {
		return nil, domain.StoreFailure("postgres search", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SearchResult, error) {
		var (
			r    domain.SearchResult
			page *int32
		)
		err := row.Scan(
			&r.Document.ID,
			&r.Document.Content,
			&r.Document.Metadata.Source,
			&r.Document.Metadata.ChunkIndex,
			&page,
			&r.Document.Embedding,
			&r.Score,
		)
		if page != nil {
			p := int(*page)
			r.Document.Metadata.PageNumber = &p
		}
		return r, err
	})
	if err != nil {
		return nil, domain.StoreFailure("postgres search", err)
	}
	return results, nil
}

func (s *Storage) DocumentCount(ctx context.Context) (int, error) {
	pool, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, domain.StoreFailure("postgres count", err)
	}
	return int(n), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	pool, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.table)); err != nil {
		return domain.StoreFailure("postgres clear", err)
	}
	return nil
}

// Close closes the pool if one was created.
func (s *Storage) Close() error {
	if pool, ok := s.pool.Reset(); ok {
		pool.Close()
	}
	return nil
}

var _ vectorstore.Storage = (*Storage)(nil)
