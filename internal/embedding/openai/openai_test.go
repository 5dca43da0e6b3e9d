package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

func embeddingServer(t *testing.T, vec []float64, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_OPENAI_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TOPICRAG_TEST_OPENAI_KEY"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEmbed(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_OPENAI_KEY", "test-key")
	var body map[string]any
	srv := embeddingServer(t, []float64{0.5, -0.25, 1}, &body)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TOPICRAG_TEST_OPENAI_KEY", Model: "local-embed", MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	v, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "hello world", body["input"])
	assert.Equal(t, "local-embed", body["model"])
	assert.NotContains(t, body, "dimensions")
}

func TestNewClient_Dimension(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_OPENAI_KEY", "test-key")
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"default model", Config{}, 1536},
		{"large model", Config{Model: "text-embedding-3-large"}, 3072},
		{"configured size wins", Config{Dimensions: 256}, 256},
		{"unknown model", Config{Model: "local-embed"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.APIKeyEnv = "TOPICRAG_TEST_OPENAI_KEY"
			c, err := NewClient(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Dimension())
		})
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_OPENAI_KEY", "test-key")
	var body map[string]any
	srv := embeddingServer(t, []float64{1, 2}, &body)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TOPICRAG_TEST_OPENAI_KEY", Dimensions: 4, MaxRetries: 1})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, float64(4), body["dimensions"])
}

func TestEmbed_ServerError(t *testing.T) {
	t.Setenv("TOPICRAG_TEST_OPENAI_KEY", "test-key")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TOPICRAG_TEST_OPENAI_KEY", MaxRetries: 1})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)
}
