// Package ollama generates answers with a local Ollama model.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultSystem keeps answers grounded in the retrieved excerpts.
const DefaultSystem = "You answer questions about video and audio content using only the provided transcript excerpts. " +
	"If the excerpts do not contain the answer, say so."

type Config struct {
	Host   string // http://localhost:11434
	Model  string // llama3.2:3b etc
	System string
}

func DefaultConfig() Config {
	return Config{Host: "http://localhost:11434", Model: "llama3.2:3b", System: DefaultSystem}
}

type Client struct {
	cfg    Config
	client *api.Client
}

func NewClient(cfg Config) (*Client, error) {
	var c *api.Client
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		c = api.NewClient(u, http.DefaultClient)
	} else {
		var err error
		c, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	return &Client{cfg: cfg, client: c}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{Model: c.cfg.Model, Prompt: prompt, System: c.cfg.System, Stream: &stream}
	var sb strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("model returned no text")
	}
	return out, nil
}
