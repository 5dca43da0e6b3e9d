package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hashing", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.Hashing)
	assert.Equal(t, 512, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	require.NotNil(t, cfg.VectorStore.Memory)
	assert.Equal(t, "vectors.json", filepath.Base(cfg.VectorStore.Memory.Path))
	assert.Equal(t, 100, cfg.VectorStore.BatchSize)
	assert.Equal(t, "openai", cfg.LLM.Type)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "sqlite", cfg.Sessions.Type)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 600, cfg.Chunker.LongVideoSecs)
	assert.Equal(t, 1500, cfg.Chunker.ShortVideoChunkSize)
	assert.Equal(t, 50, cfg.Pipeline.MinTextLength)
}

func TestLoad_AppliesDefaultsPerBackend(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, cfg *AppConfig)
	}{
		{
			name: "openai embedder",
			yaml: "embedder:\n  type: openai\n  openai:\n    model: text-embedding-3-large\n",
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.Embedder.OpenAI)
				assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
				assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
				assert.Equal(t, 30, cfg.Embedder.OpenAI.TimeoutSecs)
				assert.Nil(t, cfg.Embedder.Hashing)
			},
		},
		{
			name: "ollama embedder without block",
			yaml: "embedder:\n  type: ollama\n",
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.Embedder.Ollama)
				assert.Equal(t, "nomic-embed-text", cfg.Embedder.Ollama.Model)
			},
		},
		{
			name: "qdrant store",
			yaml: "vector_store:\n  type: qdrant\n  qdrant:\n    url: http://qdrant:6333\n",
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.VectorStore.Qdrant)
				assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
				assert.Equal(t, "topicrag", cfg.VectorStore.Qdrant.Collection)
				assert.Nil(t, cfg.VectorStore.Memory)
			},
		},
		{
			name: "pgvector store",
			yaml: "vector_store:\n  type: pgvector\n",
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.VectorStore.PGVector)
				assert.Equal(t, "TOPICRAG_PG_DSN", cfg.VectorStore.PGVector.DSNEnv)
				assert.Equal(t, "topicrag_vectors", cfg.VectorStore.PGVector.Table)
			},
		},
		{
			name: "ollama llm and no transcriber",
			yaml: "llm:\n  type: ollama\ntranscriber:\n  type: none\n",
			check: func(t *testing.T, cfg *AppConfig) {
				require.NotNil(t, cfg.LLM.Ollama)
				assert.Equal(t, "llama3.2:3b", cfg.LLM.Ollama.Model)
				assert.Nil(t, cfg.LLM.OpenAI)
				assert.Nil(t, cfg.Transcriber.Whisper)
			},
		},
		{
			name: "explicit chunker values kept",
			yaml: "chunker:\n  chunk_size: 400\n  window_secs: 120\n",
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, 400, cfg.Chunker.ChunkSize)
				assert.Equal(t, 120, cfg.Chunker.WindowSecs)
				assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			cfg, err := Load(path)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.YouTube.MaxVideos = 7
	cfg.LLM.OpenAI.Model = "gpt-4.1-mini"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "topicrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "hashing", cfg.Embedder.Type)

	again, path2, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, cfg, again)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte("summarizer:\n  type: llm\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, "llm", cfg.Summarizer.Type)
}
