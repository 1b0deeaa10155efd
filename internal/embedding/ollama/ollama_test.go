package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type fakeOllama struct {
	mu     sync.Mutex
	inputs [][]string
	status int
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/embed" {
		http.NotFound(w, r)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
		return
	}
	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.inputs = append(f.inputs, req.Input)
	f.mu.Unlock()

	embeddings := make([][]float32, len(req.Input))
	for i := range req.Input {
		embeddings[i] = []float32{float32(i + 1), 0, 0, 0, 9}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embeddings})
}

func (f *fakeOllama) received() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.inputs...)
}

func newTestClient(t *testing.T, f *fakeOllama) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		Host:           srv.URL,
		QueryPrefix:    "search_query: ",
		DocumentPrefix: "search_document: ",
		Dimension:      4,
	})
	require.NoError(t, err)
	return c
}

func TestClient_QueryAndDocumentPrefixes(t *testing.T) {
	f := &fakeOllama{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.Embed(ctx, "refunds")
	require.NoError(t, err)
	_, err = c.EmbedQuery(ctx, "how do refunds work")
	require.NoError(t, err)

	got := f.received()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"search_document: refunds"}, got[0])
	assert.Equal(t, []string{"search_query: how do refunds work"}, got[1])
}

func TestClient_EmbedBatchAdaptsDimension(t *testing.T) {
	f := &fakeOllama{}
	c := newTestClient(t, f)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0, 0, 0}, vecs[0])
	assert.Equal(t, []float32{2, 0, 0, 0}, vecs[1])
	assert.Equal(t, 4, c.Dimension())
}

func TestClient_MissingModelIsPermanentFailure(t *testing.T) {
	f := &fakeOllama{status: http.StatusNotFound}
	c := newTestClient(t, f)

	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.False(t, domain.IsRetryable(err))
}

func TestClient_UnreachableHostIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{Host: url})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.True(t, domain.IsRetryable(err))
}
