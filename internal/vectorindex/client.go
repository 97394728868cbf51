// Package vectorindex is the HTTP client for the external vector index
// service, which owns embedding computation and nearest-neighbor search. This
// core never touches vectors directly; it sends extracted pages for indexing
// and queries for scored passages.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Page is one extracted page of an uploaded document.
type Page struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// IndexRequest asks the index service to chunk, embed, and store a document
// in the named knowledge base's index. Chunking happens service-side with
// the strategy resolved by the compatibility policy.
type IndexRequest struct {
	KBName           string `json:"kb_name"`
	EmbeddingModel   string `json:"embedding_model"`
	ChunkingStrategy string `json:"chunking_strategy"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	Filename         string `json:"filename"`
	Pages            []Page `json:"pages"`
}

type IndexResult struct {
	ChunkCount int `json:"chunk_count"`
}

// SearchRequest retrieves candidate passages for a query from one knowledge
// base. FetchK may exceed the final k so the caller can run a
// diversity-aware selection over the candidates.
type SearchRequest struct {
	KBName         string `json:"kb_name"`
	EmbeddingModel string `json:"embedding_model"`
	Query          string `json:"query"`
	FetchK         int    `json:"fetch_k"`
}

// Passage is one retrieved excerpt. Score is a relevance in (0, 1], already
// normalized from the index's distance metric.
type Passage struct {
	SourceDocument string  `json:"source_document"`
	PageNumber     int     `json:"page_number"`
	Score          float64 `json:"score"`
	Excerpt        string  `json:"excerpt"`
}

func (c *Client) Index(ctx context.Context, req IndexRequest) (*IndexResult, error) {
	var result IndexResult
	if err := c.post(ctx, "/index", req, &result); err != nil {
		return nil, err
	}
	if result.ChunkCount < 0 {
		return nil, fmt.Errorf("index service returned negative chunk count %d", result.ChunkCount)
	}
	return &result, nil
}

func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Passage, error) {
	var result struct {
		Passages []struct {
			SourceDocument string  `json:"source_document"`
			PageNumber     int     `json:"page_number"`
			Distance       float64 `json:"distance"`
			Excerpt        string  `json:"excerpt"`
		} `json:"passages"`
	}
	if err := c.post(ctx, "/search", req, &result); err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(result.Passages))
	for _, p := range result.Passages {
		passages = append(passages, Passage{
			SourceDocument: p.SourceDocument,
			PageNumber:     p.PageNumber,
			Score:          normalizeScore(p.Distance),
			Excerpt:        p.Excerpt,
		})
	}
	return passages, nil
}

// normalizeScore converts an index distance (smaller is better) into a
// relevance score in (0, 1] (larger is better).
func normalizeScore(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal index request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build index request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("index service request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read index service response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("index service status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse index service json failed: %w", err)
	}
	return nil
}
