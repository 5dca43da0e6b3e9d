package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2,0.3]]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Host: srv.URL, Model: "tiny-embed"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())
	v, err := c.Embed(context.Background(), "chunk text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "tiny-embed", req["model"])
	assert.Equal(t, "chunk text", req["input"])
}

func TestNewClient_Dimension(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"default model", DefaultConfig(), 768},
		{"latest tag", Config{Host: "http://localhost:11434", Model: "mxbai-embed-large:latest"}, 1024},
		{"configured size wins", Config{Host: "http://localhost:11434", Model: "nomic-embed-text", Dimension: 512}, 512},
		{"unknown model", Config{Host: "http://localhost:11434", Model: "tiny-embed"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Dimension())
		})
	}
}

func TestEmbed_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","embeddings":[[1,2]]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Host: srv.URL, Model: "m", Dimension: 3})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	t.Cleanup(down.Close)
	c, err = NewClient(Config{Host: down.URL, Model: "m"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)
}
