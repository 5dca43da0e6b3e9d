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

func TestGenerate(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2:3b","response":" An answer. ","done":true}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Host: srv.URL, System: "be brief"})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "An answer.", out)
	assert.Equal(t, "prompt text", req["prompt"])
	assert.Equal(t, "be brief", req["system"])
	assert.Equal(t, false, req["stream"])
}

func TestGenerate_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Host: srv.URL, Model: "missing"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestDefaultConfig_System(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2:3b","response":"ok","done":true}`))
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Host = srv.URL
	c, err := NewClient(cfg)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystem, req["system"])
	assert.Contains(t, req["system"], "using only the provided transcript excerpts")
}
