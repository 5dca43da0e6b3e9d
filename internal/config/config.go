// Package config loads the YAML application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// OllamaEmbedderConfig configures embeddings from a local Ollama server.
type OllamaEmbedderConfig struct {
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Ollama  *OllamaEmbedderConfig  `yaml:"ollama,omitempty"`
}

// ChunkerConfig configures the chunking strategies.
type ChunkerConfig struct {
	ChunkSize           int `yaml:"chunk_size"`
	ChunkOverlap        int `yaml:"chunk_overlap"`
	MinChapterLength    int `yaml:"min_chapter_length"`
	WindowSecs          int `yaml:"window_secs"`
	LongVideoSecs       int `yaml:"long_video_secs"`
	ShortVideoChunkSize int `yaml:"short_video_chunk_size"`
	ShortVideoOverlap   int `yaml:"short_video_overlap"`
}

// MemoryStoreConfig configures the in-process index. A non-empty Path keeps
// the index in a JSON file between runs.
type MemoryStoreConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PGVectorConfig contains connection details for Postgres with pgvector.
type PGVectorConfig struct {
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type      string             `yaml:"type"`
	BatchSize int                `yaml:"batch_size"`
	Memory    *MemoryStoreConfig `yaml:"memory,omitempty"`
	Qdrant    *QdrantConfig      `yaml:"qdrant,omitempty"`
	PGVector  *PGVectorConfig    `yaml:"pgvector,omitempty"`
}

// OpenAILLMConfig configures answers from the Responses API.
type OpenAILLMConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
}

// OllamaLLMConfig configures answers from a local Ollama model.
type OllamaLLMConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// LLMConfig selects the answer generator.
type LLMConfig struct {
	Type   string           `yaml:"type"`
	OpenAI *OpenAILLMConfig `yaml:"openai,omitempty"`
	Ollama *OllamaLLMConfig `yaml:"ollama,omitempty"`
}

// WhisperConfig configures speech-to-text.
type WhisperConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// TranscriberConfig selects the media transcriber. Type "none" disables media uploads.
type TranscriberConfig struct {
	Type    string         `yaml:"type"`
	Whisper *WhisperConfig `yaml:"whisper,omitempty"`
}

// YouTubeConfig configures the video source. Transcripts come from
// TranscriptDir first, then from caption tracks, then from transcribing the
// audio with the configured transcriber. Offline keeps it to TranscriptDir.
type YouTubeConfig struct {
	APIKeyEnv     string   `yaml:"api_key_env"`
	TranscriptDir string   `yaml:"transcript_dir"`
	Endpoint      string   `yaml:"endpoint"`
	MaxVideos     int      `yaml:"max_videos"`
	Languages     []string `yaml:"languages"`
	Offline       bool     `yaml:"offline"`
}

// SessionsConfig selects the session store.
type SessionsConfig struct {
	Type    string `yaml:"type"`
	DataDir string `yaml:"data_dir"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// PipelineConfig tunes ingestion and question answering.
type PipelineConfig struct {
	MinTextLength int `yaml:"min_text_length"`
	TopK          int `yaml:"top_k"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/topicrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/topicrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "topicrag", "config.yaml"), nil
}

// DataDir returns the directory for local state, ~/.local/share/topicrag.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "topicrag")
	}
	return filepath.Join(home, ".local", "share", "topicrag")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		LLM:         LLMConfig{Type: "openai"},
		Transcriber: TranscriberConfig{Type: "whisper"},
		Sessions:    SessionsConfig{Type: "sqlite"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	setDefault(&cfg.Embedder.Type, "hashing")
	switch cfg.Embedder.Type {
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		setDefaultInt(&cfg.Embedder.Hashing.Dimension, 512)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		setDefault(&o.BaseURL, "https://api.openai.com/v1")
		setDefault(&o.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&o.Model, "text-embedding-3-small")
		setDefaultInt(&o.TimeoutSecs, 30)
		setDefaultInt(&o.MaxRetries, 3)
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		setDefault(&cfg.Embedder.Ollama.Host, "http://localhost:11434")
		setDefault(&cfg.Embedder.Ollama.Model, "nomic-embed-text")
	}

	c := &cfg.Chunker
	setDefaultInt(&c.ChunkSize, 1000)
	setDefaultInt(&c.ChunkOverlap, 200)
	setDefaultInt(&c.MinChapterLength, 50)
	setDefaultInt(&c.WindowSecs, 300)
	setDefaultInt(&c.LongVideoSecs, 600)
	setDefaultInt(&c.ShortVideoChunkSize, 1500)
	setDefaultInt(&c.ShortVideoOverlap, 300)

	setDefault(&cfg.VectorStore.Type, "memory")
	setDefaultInt(&cfg.VectorStore.BatchSize, 100)
	switch cfg.VectorStore.Type {
	case "memory":
		if cfg.VectorStore.Memory == nil {
			cfg.VectorStore.Memory = &MemoryStoreConfig{Path: filepath.Join(DataDir(), "vectors.json")}
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		setDefault(&cfg.VectorStore.Qdrant.URL, "http://localhost:6333")
		setDefault(&cfg.VectorStore.Qdrant.Collection, "topicrag")
		setDefaultInt(&cfg.VectorStore.Qdrant.TimeoutSecs, 15)
	case "pgvector":
		if cfg.VectorStore.PGVector == nil {
			cfg.VectorStore.PGVector = &PGVectorConfig{}
		}
		setDefault(&cfg.VectorStore.PGVector.DSNEnv, "TOPICRAG_PG_DSN")
		setDefault(&cfg.VectorStore.PGVector.Table, "topicrag_vectors")
	}

	setDefault(&cfg.LLM.Type, "openai")
	switch cfg.LLM.Type {
	case "openai":
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAILLMConfig{}
		}
		o := cfg.LLM.OpenAI
		setDefault(&o.BaseURL, "https://api.openai.com/v1")
		setDefault(&o.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&o.Model, "gpt-4o-mini")
		setDefaultInt(&o.MaxOutputTokens, 800)
		setDefaultInt(&o.TimeoutSecs, 60)
	case "ollama":
		if cfg.LLM.Ollama == nil {
			cfg.LLM.Ollama = &OllamaLLMConfig{}
		}
		setDefault(&cfg.LLM.Ollama.Host, "http://localhost:11434")
		setDefault(&cfg.LLM.Ollama.Model, "llama3.2:3b")
	}

	setDefault(&cfg.Transcriber.Type, "whisper")
	if cfg.Transcriber.Type == "whisper" {
		if cfg.Transcriber.Whisper == nil {
			cfg.Transcriber.Whisper = &WhisperConfig{}
		}
		w := cfg.Transcriber.Whisper
		setDefault(&w.BaseURL, "https://api.openai.com/v1")
		setDefault(&w.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&w.Model, "whisper-1")
		setDefaultInt(&w.TimeoutSecs, 600)
	}

	setDefault(&cfg.YouTube.APIKeyEnv, "YOUTUBE_API_KEY")
	setDefault(&cfg.YouTube.TranscriptDir, filepath.Join(DataDir(), "transcripts"))
	setDefaultInt(&cfg.YouTube.MaxVideos, 3)
	if len(cfg.YouTube.Languages) == 0 {
		cfg.YouTube.Languages = []string{"en"}
	}

	setDefault(&cfg.Sessions.Type, "sqlite")
	setDefault(&cfg.Sessions.DataDir, DataDir())

	setDefault(&cfg.Summarizer.Type, "frequency")
	setDefaultInt(&cfg.Summarizer.MaxSentences, 5)

	setDefaultInt(&cfg.Pipeline.MinTextLength, 50)
	setDefaultInt(&cfg.Pipeline.TopK, 5)
}

func setDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDefaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
