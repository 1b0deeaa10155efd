// Package qdrant is a minimal REST client to a Qdrant collection.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/lazy"
	"ragqa/internal/vectorstore"
)

// pointNamespace derives stable point UUIDs from document IDs, since Qdrant
// only accepts UUIDs or unsigned integers as point IDs.
var pointNamespace = uuid.MustParse("6f1c1f3e-3b7a-5f43-9c55-0d8a4e2b7c10")

type Config struct {
	URL        string
	APIKey     string
	Collection string
	// Dimension sizes a collection that does not exist yet.
	Dimension  int
	Timeout    time.Duration
	BatchSize  int
	HTTPClient *http.Client
}

// Storage assumes cosine distance and creates the collection if missing.
// The collection is checked on first use and its vector size remembered.
type Storage struct {
	cfg    Config
	base   string
	client *http.Client
	size   lazy.Value[int]
}

type payload struct {
	DocID      string `json:"doc_id"`
	Content    string `json:"content"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber *int   `json:"page_number,omitempty"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

type scoredPoint struct {
	ID      string    `json:"id"`
	Score   float64   `json:"score"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

func NewStorage(cfg Config) *Storage {
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultIndexName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = vectorstore.DefaultBatchSize
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Storage{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.URL, "/") + "/collections/" + url.PathEscape(cfg.Collection),
		client: client,
	}
}

// PointID maps a document ID to the Qdrant point ID it is stored under.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	return s.size.Get(ctx, s.ensureCollection)
}

func (s *Storage) ensureCollection(ctx context.Context) (int, error) {
	if s.cfg.URL == "" {
		return 0, domain.ConfigMissing("qdrant store", "RAG_QDRANT_URL")
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, s.base, nil, &info)
	switch {
	case err == nil:
		return info.Result.Config.Params.Vectors.Size, nil
	case status != http.StatusNotFound:
		return 0, domain.StoreFailure("qdrant collection", err)
	}

	if s.cfg.Dimension <= 0 {
		return 0, domain.ConfigMissing("qdrant store", "vector dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.base, body, nil); err != nil {
		return 0, domain.StoreFailure("qdrant create collection", err)
	}
	return s.cfg.Dimension, nil
}

// AddDocuments upserts docs in batches. Point IDs are derived from document
// IDs, so re-adding a document overwrites it.
func (s *Storage) AddDocuments(ctx context.Context, docs []domain.StoredDocument) error {
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if _, err := vectorstore.CheckDimension(docs, dim); err != nil {
		return err
	}
	return vectorstore.UpsertBatches(ctx, vectorstore.Dedupe(docs), s.cfg.BatchSize, func(ctx context.Context, docs []domain.StoredDocument) error {
		points := make([]point, len(docs))
		for i, d := range docs {
			points[i] = point{
				ID:     PointID(d.ID),
				Vector: d.Embedding,
				Payload: payload{
					DocID:      d.ID,
					Content:    d.Content,
					Source:     d.Metadata.Source,
					ChunkIndex: d.Metadata.ChunkIndex,
					PageNumber: d.Metadata.PageNumber,
				},
			}
		}
		if _, err := s.do(ctx, http.MethodPut, s.base+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
			return domain.StoreFailure("qdrant upsert", err)
		}
		return nil
	})
}

func (s *Storage) SimilaritySearch(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", domain.ErrDimensionMismatch, len(query), dim)
	}
	if k <= 0 {
		k = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.base+"/points/search", req, &resp); err != nil {
		return nil, domain.StoreFailure("qdrant search", err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Document: domain.StoredDocument{
				ID:        r.Payload.DocID,
				Content:   r.Payload.Content,
				Embedding: r.Vector,
				Metadata: domain.ChunkMetadata{
					Source:     r.Payload.Source,
					ChunkIndex: r.Payload.ChunkIndex,
					PageNumber: r.Payload.PageNumber,
				},
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (s *Storage) DocumentCount(ctx context.Context) (int, error) {
	if _, err := s.dimension(ctx); err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.base+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, domain.StoreFailure("qdrant count", err)
	}
	return resp.Result.Count, nil
}

// Clear drops the collection. The next call recreates it.
func (s *Storage) Clear(ctx context.Context) error {
	if s.cfg.URL == "" {
		return domain.ConfigMissing("qdrant store", "RAG_QDRANT_URL")
	}
	status, err := s.do(ctx, http.MethodDelete, s.base, nil, nil)
	if err != nil && status != http.StatusNotFound {
		return domain.StoreFailure("qdrant clear", err)
	}
	s.size.Reset()
	return nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends body as JSON and decodes a successful response into out. The
// status code is returned alongside any error.
func (s *Storage) do(ctx context.Context, method, endpoint string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Status.Error != "" {
			return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, req.URL.Path, resp.Status, e.Status.Error)
		}
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, req.URL.Path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

var _ vectorstore.Storage = (*Storage)(nil)
