package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	irisredis "github.com/Ramsey-B/iris/pkg/redis"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func TestNewTEIEmbedder(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewTEIEmbedder(TEIConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base URL is required")
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		e, err := NewTEIEmbedder(TEIConfig{BaseURL: "http://localhost:8080/", Model: "bge"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", e.baseURL)
		assert.Equal(t, "bge", e.model)
	})
}

func TestTEIEmbedder_OpenAICompatible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"IBM", "Apple"}, req.Input)

		// out of order on purpose
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.4,0.5],"index":1},{"embedding":[0.1,0.2],"index":0}]}`))
	}))
	defer server.Close()

	e, err := NewTEIEmbedder(TEIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), []string{"IBM", "Apple"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.4, 0.5}}, vectors)
}

func TestTEIEmbedder_FallsBackToNativeEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/embeddings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "/embed", r.URL.Path)

		var req nativeEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		_, _ = w.Write([]byte(`[[1,0,0]]`))
	}))
	defer server.Close()

	e, err := NewTEIEmbedder(TEIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0, 0}}, vectors)
}

func TestTEIEmbedder_Errors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		e, err := NewTEIEmbedder(TEIConfig{BaseURL: "http://localhost:1"})
		require.NoError(t, err)
		vectors, err := e.EmbedStrings(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("model not loaded"))
		}))
		defer server.Close()

		e, err := NewTEIEmbedder(TEIConfig{BaseURL: server.URL})
		require.NoError(t, err)
		_, err = e.EmbedStrings(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("count mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/embeddings" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`[[1]]`))
		}))
		defer server.Close()

		e, err := NewTEIEmbedder(TEIConfig{BaseURL: server.URL})
		require.NoError(t, err)
		_, err = e.EmbedStrings(context.Background(), []string{"a", "b"})
		require.Error(t, err)
	})
}

func TestNewEmbedder_Providers(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: ProviderOpenAI})
	require.Error(t, err, "openai needs an api key")

	e, err := NewEmbedder(context.Background(), Config{Provider: ProviderTEI, BaseURL: "http://tei:8080"})
	require.NoError(t, err)
	assert.IsType(t, &TEIEmbedder{}, e)

	_, err = NewEmbedder(context.Background(), Config{Provider: "bogus"})
	require.Error(t, err)

	_, err = ValidateProvider("ollama")
	require.NoError(t, err)
	_, err = ValidateProvider("gemini")
	require.Error(t, err)
}

type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (c *countingEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text))}
	}
	return out, nil
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.values[key]
	if !ok {
		return nil, irisredis.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestService_EmbedBatchUsesLocalCache(t *testing.T) {
	model := &countingEmbedder{}
	local := NewLocalCache(time.Minute)
	svc := NewService(model, "bge", testLogger, WithLocalCache(local))

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {2}}, vectors)
	assert.Equal(t, 2, local.ItemCount())

	vectors, err = svc.EmbedBatch(context.Background(), []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {3}, {1}}, vectors)

	require.Len(t, model.calls, 2)
	assert.Equal(t, []string{"ccc"}, model.calls[1], "only misses reach the model")
}

func TestService_SharedCacheFillsLocal(t *testing.T) {
	store := newMemoryStore()
	shared := NewSharedCache(store, time.Hour, testLogger)

	warm := NewService(&countingEmbedder{}, "bge", testLogger, WithSharedCache(shared))
	_, err := warm.Embed(context.Background(), "IBM")
	require.NoError(t, err)

	model := &countingEmbedder{}
	local := NewLocalCache(time.Minute)
	svc := NewService(model, "bge", testLogger, WithLocalCache(local), WithSharedCache(shared))

	v, err := svc.Embed(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, v)
	assert.Empty(t, model.calls)
	assert.Equal(t, 1, local.ItemCount())
}

func TestService_CacheKeyIsModelScoped(t *testing.T) {
	assert.NotEqual(t, CacheKey("a", "text"), CacheKey("b", "text"))
	assert.Equal(t, CacheKey("a", "text"), CacheKey("a", "text"))
}

func TestService_SharedCacheErrorsAreMisses(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	model := &countingEmbedder{}
	svc := NewService(model, "bge", testLogger, WithSharedCache(NewSharedCache(store, time.Hour, testLogger)))

	v, err := svc.Embed(context.Background(), "xy")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, v)
	assert.Len(t, model.calls, 1)
}

func TestService_EmbedderError(t *testing.T) {
	svc := NewService(&countingEmbedder{err: errors.New("timeout")}, "bge", testLogger)

	_, err := svc.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
