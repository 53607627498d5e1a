// Package rerank scores (query, candidate) pairs with a cross-encoder served by
// Text Embeddings Inference. Scores are raw logits and are not bounded.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/iris/pkg/tracing"
)

// Config holds configuration for the TEI reranker
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the TEI /rerank endpoint
type Client struct {
	baseURL string
	client  *http.Client
	logger  ectologger.Logger
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewClient creates a new TEI reranker client
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("TEI reranker base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Score returns the raw relevance of candidate to query
func (c *Client) Score(ctx context.Context, query, candidate string) (float64, error) {
	scores, err := c.ScoreBatch(ctx, query, []string{candidate})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreBatch returns raw scores aligned with texts
func (c *Client) ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	ctx, span := tracing.StartSpan(ctx, "rerank.Client.ScoreBatch")
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Texts:     texts,
		RawScores: true,
		Truncate:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("TEI rerank returned status %d: %s", resp.StatusCode, string(respBody))
		tracing.RecordError(span, err)
		return nil, err
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("TEI rerank returned out of range index %d", r.Index)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("TEI rerank returned no score for text %d", i)
		}
	}

	c.logger.WithContext(ctx).WithField("texts", len(texts)).Debug("Reranked candidates")
	return scores, nil
}
