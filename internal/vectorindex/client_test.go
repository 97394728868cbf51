package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchNormalizesDistances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "kb_docs", req.KBName)
		assert.Equal(t, 8, req.FetchK)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"passages": []map[string]interface{}{
				{"source_document": "a.pdf", "page_number": 1, "distance": 0.0, "excerpt": "exact"},
				{"source_document": "b.pdf", "page_number": 2, "distance": 1.0, "excerpt": "close"},
				{"source_document": "c.pdf", "page_number": 3, "distance": 3.0, "excerpt": "far"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"}, 5*time.Second)
	passages, err := client.Search(context.Background(), SearchRequest{
		KBName:         "kb_docs",
		EmbeddingModel: "text-embedding-3-small",
		Query:          "q",
		FetchK:         8,
	})
	require.NoError(t, err)
	require.Len(t, passages, 3)

	assert.InDelta(t, 1.0, passages[0].Score, 1e-9)
	assert.InDelta(t, 0.5, passages[1].Score, 1e-9)
	assert.InDelta(t, 0.25, passages[2].Score, 1e-9)
}

func TestIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index", r.URL.Path)

		var req IndexRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "semantic_percentile", req.ChunkingStrategy)
		assert.Len(t, req.Pages, 2)

		_ = json.NewEncoder(w).Encode(IndexResult{ChunkCount: 12})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, 5*time.Second)
	result, err := client.Index(context.Background(), IndexRequest{
		KBName:           "kb_docs",
		EmbeddingModel:   "text-embedding-3-small",
		ChunkingStrategy: "semantic_percentile",
		ChunkSize:        1000,
		ChunkOverlap:     200,
		Filename:         "doc.pdf",
		Pages: []Page{
			{PageNumber: 1, Content: "one"},
			{PageNumber: 2, Content: "two"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, result.ChunkCount)
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index corrupt", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, 5*time.Second)
	_, err := client.Search(context.Background(), SearchRequest{KBName: "kb_docs", Query: "q", FetchK: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
