// Package embed provides the embedding provider client. It speaks the
// OpenAI-compatible /v1/embeddings protocol over HTTP.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/logger"
)

// DefaultModel is the embedding model the original platform indexes with.
const DefaultModel = "text-embedding-3-small"

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// Client is an OpenAI-compatible embeddings client. Documents and queries
// are embedded with the same model, so their vectors share one space.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	batchSize int
	dimension atomic.Int64
	client    *http.Client
}

// NewClient creates an embeddings client from cfg. The API key is
// required; everything else has defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EmbedDocuments embeds chunk texts in order, batching up to the
// configured batch size per call to amortize round trips.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	logger.Debug("Embedded %d texts with model %s", len(texts), c.model)
	return out, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the vector length seen on the first successful call,
// or 0 before any call has completed. Safe for concurrent use.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": c.model,
	})
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &core.EmbeddingError{Err: fmt.Errorf("embeddings request failed: %s: %s", resp.Status, bytes.TrimSpace(msg))}
	}

	var decoded struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("decoding embeddings response: %w", err)}
	}
	if len(decoded.Data) != len(texts) {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(decoded.Data))}
	}

	// order by index; the API guarantees one entry per input
	vecs := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, &core.EmbeddingError{Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, &core.EmbeddingError{Err: fmt.Errorf("no embedding returned for input %d", i)}
		}
	}
	c.dimension.CompareAndSwap(0, int64(len(vecs[0])))
	return vecs, nil
}

var _ core.Embedder = (*Client)(nil)
