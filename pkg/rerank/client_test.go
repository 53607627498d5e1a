package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{}, testLogger)
	require.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://tei:8081/"}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "http://tei:8081", c.baseURL)
}

func TestClient_ScoreBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "IBM", req.Query)
		assert.True(t, req.RawScores)
		assert.Len(t, req.Texts, 2)

		// TEI sorts by score
		_, _ = w.Write([]byte(`[{"index":1,"score":7.2},{"index":0,"score":-3.1}]`))
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL}, testLogger)
	require.NoError(t, err)

	scores, err := c.ScoreBatch(context.Background(), "IBM", []string{"Apple", "International Business Machines"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-3.1, 7.2}, scores)
}

func TestClient_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":-0.48}]`))
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL}, testLogger)
	require.NoError(t, err)

	score, err := c.Score(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, -0.48, score)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "missing score",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[{"index":0,"score":1}]`))
			},
		},
		{
			name: "index out of range",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[{"index":0,"score":1},{"index":5,"score":1}]`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c, err := NewClient(Config{BaseURL: server.URL}, testLogger)
			require.NoError(t, err)

			_, err = c.ScoreBatch(context.Background(), "q", []string{"a", "b"})
			require.Error(t, err)
		})
	}
}

func TestClient_RespectsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL}, testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Score(ctx, "q", "a")
	require.Error(t, err)
}
