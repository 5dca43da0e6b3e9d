package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"topicrag/internal/domain"
)

// MaxUploadBytes is the largest file the transcription API accepts.
const MaxUploadBytes = 25 << 20

// WhisperConfig configures the OpenAI-compatible transcription client.
type WhisperConfig struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Language   string
	Timeout    time.Duration
	MaxRetries int
}

// Whisper transcribes audio and video through the audio transcriptions API.
type Whisper struct {
	client   openai.Client
	model    string
	language string
}

type verboseTranscription struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewWhisper creates a transcription client.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	return &Whisper{
		client: openai.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(cfg.MaxRetries),
			option.WithRequestTimeout(cfg.Timeout),
		),
		model:    cfg.Model,
		language: cfg.Language,
	}, nil
}

// Transcribe uploads data and returns the transcript with segment timings.
func (w *Whisper) Transcribe(ctx context.Context, filename string, data []byte) (domain.Transcript, error) {
	if !IsMediaFile(filename) {
		return domain.Transcript{}, fmt.Errorf("%w: unsupported media type %q", domain.ErrInvalidInput, filepath.Ext(filename))
	}
	if len(data) == 0 {
		return domain.Transcript{}, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, filename)
	}
	if len(data) > MaxUploadBytes {
		return domain.Transcript{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", domain.ErrInvalidInput, filename, len(data), MaxUploadBytes)
	}

	ctype := mime.TypeByExtension(filepath.Ext(filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(data), filepath.Base(filename), ctype),
		Model:          openai.AudioModel(w.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	var out verboseTranscription
	if _, err := w.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&out)); err != nil {
		return domain.Transcript{}, fmt.Errorf("transcribe %s: %w", filename, err)
	}
	return out.transcript(), nil
}

func (v verboseTranscription) transcript() domain.Transcript {
	if len(v.Segments) == 0 {
		return domain.Transcript{Text: v.Text, DurationSec: int(v.Duration)}
	}
	segs := make([]domain.TimedSegment, len(v.Segments))
	for i, s := range v.Segments {
		segs[i] = domain.TimedSegment{Text: s.Text, Start: s.Start, Duration: max(s.End-s.Start, 0)}
	}
	return FromSegments(segs, int(v.Duration))
}
