package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/storetest"
)

// fakeQdrant implements the handful of collection endpoints the client uses.
type fakeQdrant struct {
	mu          sync.Mutex
	size        int
	exists      bool
	order       []string
	points      map[string]point
	apiKeys     []string
	upsertCalls int
	failUpsert  int
}

func newFakeQdrant() *fakeQdrant { return &fakeQdrant{points: map[string]point{}} }

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	const prefix = "/collections/customer-support-rag"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	switch rest := strings.TrimPrefix(r.URL.Path, prefix); {
	case rest == "" && r.Method == http.MethodGet:
		if !f.exists {
			writeError(w, http.StatusNotFound, "Collection not found")
			return
		}
		writeResult(w, map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}}})
	case rest == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.exists, f.size = true, body.Vectors.Size
		writeResult(w, true)
	case rest == "" && r.Method == http.MethodDelete:
		f.exists, f.size, f.order, f.points = false, 0, nil, map[string]point{}
		writeResult(w, true)
	case rest == "/points" && r.Method == http.MethodPut:
		f.upsertCalls++
		if f.failUpsert > 0 && f.upsertCalls == f.failUpsert {
			writeError(w, http.StatusInternalServerError, "disk full")
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if _, ok := f.points[p.ID]; !ok {
				f.order = append(f.order, p.ID)
			}
			f.points[p.ID] = p
		}
		writeResult(w, map[string]any{"status": "completed"})
	case rest == "/points/count" && r.Method == http.MethodPost:
		writeResult(w, map[string]any{"count": len(f.points)})
	case rest == "/points/search" && r.Method == http.MethodPost:
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		docs := make([]domain.StoredDocument, 0, len(f.order))
		for _, id := range f.order {
			docs = append(docs, domain.StoredDocument{ID: id, Embedding: f.points[id].Vector})
		}
		ranked, err := vectorstore.TopK(body.Vector, docs, body.Limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out := make([]scoredPoint, len(ranked))
		for i, r := range ranked {
			p := f.points[r.Document.ID]
			out[i] = scoredPoint{ID: p.ID, Score: r.Score, Vector: p.Vector, Payload: p.Payload}
		}
		writeResult(w, out)
	default:
		http.NotFound(w, r)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]any{"error": msg}})
}

func TestStorage_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		srv := httptest.NewServer(newFakeQdrant())
		t.Cleanup(srv.Close)
		return NewStorage(Config{URL: srv.URL, Dimension: storetest.Dimension})
	})
}

func TestStorage_MissingURL(t *testing.T) {
	s := NewStorage(Config{Dimension: 4})
	_, err := s.DocumentCount(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	assert.ErrorIs(t, s.Clear(context.Background()), domain.ErrConfigurationMissing)
}

func TestStorage_SendsAPIKeyAndCreatesCollectionOnce(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Dimension: 4})
	for i := 0; i < 3; i++ {
		_, err := s.DocumentCount(ctx)
		require.NoError(t, err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.exists)
	assert.Equal(t, 4, fake.size)
	// GET, PUT, then one count per call.
	assert.Len(t, fake.apiKeys, 5)
	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestStorage_UsesExistingCollectionSize(t *testing.T) {
	fake := newFakeQdrant()
	fake.exists, fake.size = true, 2
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Dimension: 4})
	err := s.AddDocuments(context.Background(), []domain.StoredDocument{storetest.Doc("a.txt", 0, "a", 1, 0, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStorage_ReportsFailedBatch(t *testing.T) {
	fake := newFakeQdrant()
	fake.failUpsert = 2
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	s := NewStorage(Config{URL: srv.URL, Dimension: 4, BatchSize: 2})
	docs := []domain.StoredDocument{
		storetest.Doc("a.txt", 0, "a", 1, 0, 0, 0),
		storetest.Doc("a.txt", 1, "b", 0, 1, 0, 0),
		storetest.Doc("a.txt", 2, "c", 0, 0, 1, 0),
		storetest.Doc("a.txt", 3, "d", 0, 0, 0, 1),
		storetest.Doc("a.txt", 4, "e", 1, 1, 0, 0),
	}
	err := s.AddDocuments(ctx, docs)

	var be *vectorstore.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Committed)
	assert.Equal(t, 3, be.Total)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "disk full")

	n, err := s.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the first batch stays committed")
}

func TestPointID(t *testing.T) {
	a := PointID("policy.txt-0")
	assert.Equal(t, a, PointID("policy.txt-0"))
	assert.NotEqual(t, a, PointID("policy.txt-1"))
	assert.Len(t, a, 36)
}
