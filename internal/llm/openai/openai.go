// Package openai generates answers with the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
)

// DefaultInstructions frame every answer.
const DefaultInstructions = "You answer questions about video and audio content using only the provided transcript excerpts. " +
	"Cite timestamps in [mm:ss] form when they are given. If the excerpts do not contain the answer, say so."

// Config configures the generator.
type Config struct {
	BaseURL         string
	APIKeyEnv       string
	Model           string
	Instructions    string
	MaxOutputTokens int
	Timeout         time.Duration
}

// Generator implements domain.Generator.
type Generator struct {
	client       openai.Client
	model        string
	instructions string
	maxOut       int64
	// waits between attempts, indexed by attempt
	rateLimitWaits   []time.Duration
	serverErrorWaits []time.Duration
}

// NewGenerator creates a Responses API generator.
func NewGenerator(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 800
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Generator{
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(cfg.Timeout),
		),
		model:            cfg.Model,
		instructions:     cfg.Instructions,
		maxOut:           int64(cfg.MaxOutputTokens),
		rateLimitWaits:   []time.Duration{20 * time.Second, 40 * time.Second},
		serverErrorWaits: []time.Duration{5 * time.Second, 30 * time.Second},
	}, nil
}

// Generate sends prompt as the user input and returns the output text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(g.maxOut),
		Instructions:    openai.String(g.instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	resp, err := g.callWithRetry(ctx, params)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", errors.New("model returned no text")
	}
	return out, nil
}

func (g *Generator) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	attempts := len(g.rateLimitWaits) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := g.client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		var wait time.Duration
		switch {
		case isRateLimitError(err) && attempt < len(g.rateLimitWaits):
			wait = g.rateLimitWaits[attempt]
		case isServerError(err) && attempt < len(g.serverErrorWaits):
			wait = g.serverErrorWaits[attempt]
		default:
			return nil, fmt.Errorf("openai responses: %w", err)
		}
		logger.Warn("openai responses attempt %d failed, retrying in %s: %v", attempt+1, wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("openai responses: failed after %d attempts", attempts)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}

func isServerError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "internal server error") || strings.Contains(s, "server_error")
}
