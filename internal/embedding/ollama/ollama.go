// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
)

// Config holds configuration for Ollama embeddings.
type Config struct {
	Host  string // e.g., "http://localhost:11434"
	Model string // e.g., "nomic-embed-text"
	// Dimension is the expected vector length. Zero uses the size of a known
	// model or learns it from the first call.
	Dimension int
}

// modelDimensions holds the vector length of common embedding models.
var modelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// DefaultConfig returns a default Ollama configuration.
func DefaultConfig() Config {
	return Config{
		Host:  "http://localhost:11434",
		Model: "nomic-embed-text",
	}
}

// Client wraps the Ollama API client for generating embeddings.
type Client struct {
	cfg    Config
	client *api.Client

	mu        sync.Mutex
	dimension int
}

// NewClient creates a new Ollama embeddings client. An empty host falls back
// to OLLAMA_HOST.
func NewClient(cfg Config) (*Client, error) {
	var client *api.Client
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client from environment: %w", err)
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = modelDimensions[strings.TrimSuffix(cfg.Model, ":latest")]
	}
	return &Client{cfg: cfg, client: client, dimension: cfg.Dimension}, nil
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed generates an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	v := resp.Embeddings[0]

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	if len(v) != c.dimension {
		return nil, fmt.Errorf("embedding dimension %d, expected %d", len(v), c.dimension)
	}
	return v, nil
}
