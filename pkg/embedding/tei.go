package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// TEIConfig configures a Text Embeddings Inference client
type TEIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TEIEmbedder implements the eino Embedder for TEI servers. It uses the
// OpenAI-compatible /v1/embeddings endpoint and falls back to the native /embed.
type TEIEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

type openAIEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type nativeEmbedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate,omitempty"`
}

// NewTEIEmbedder creates a new TEI embedder
func NewTEIEmbedder(cfg TEIConfig) (*TEIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("TEI base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TEIEmbedder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// EmbedStrings implements embedding.Embedder
func (e *TEIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedOpenAI(ctx, texts)
	if err != nil {
		vectors, err = e.embedNative(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("TEI embedding failed: %w", err)
		}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("TEI returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *TEIEmbedder) embedOpenAI(ctx context.Context, texts []string) ([][]float64, error) {
	var resp openAIEmbeddingResponse
	if err := e.post(ctx, "/v1/embeddings", openAIEmbeddingRequest{Input: texts, Model: e.model}, &resp); err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("TEI returned out of range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("TEI returned no embedding for input %d", i)
		}
	}
	return vectors, nil
}

func (e *TEIEmbedder) embedNative(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	if err := e.post(ctx, "/embed", nativeEmbedRequest{Inputs: texts, Truncate: true}, &vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *TEIEmbedder) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("TEI returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ embedding.Embedder = (*TEIEmbedder)(nil)
