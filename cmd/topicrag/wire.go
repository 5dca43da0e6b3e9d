package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"topicrag/internal/chunker"
	"topicrag/internal/config"
	"topicrag/internal/domain"
	"topicrag/internal/embedding/hashing"
	ollamaemb "topicrag/internal/embedding/ollama"
	openaiemb "topicrag/internal/embedding/openai"
	ollamallm "topicrag/internal/llm/ollama"
	openaillm "topicrag/internal/llm/openai"
	"topicrag/internal/logger"
	"topicrag/internal/pipeline"
	"topicrag/internal/session/memory"
	"topicrag/internal/session/sqlite"
	"topicrag/internal/summarizer"
	"topicrag/internal/transcribe"
	"topicrag/internal/vectorstore"
	memindex "topicrag/internal/vectorstore/memory"
	"topicrag/internal/vectorstore/pgvector"
	"topicrag/internal/vectorstore/qdrant"
	"topicrag/internal/youtube"
)

// app holds the components shared by every command. Network clients that
// need credentials (LLM, transcriber, video search) are built on demand.
type app struct {
	cfg      *config.AppConfig
	store    *vectorstore.IsolationStore
	sessions domain.SessionStore
	closers  []func() error
}

// needs names the optional collaborators a command uses.
type needs struct {
	videos      bool
	transcriber bool
}

func openApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{cfg: cfg}
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	index, err := a.newIndex(ctx, cfg.VectorStore, emb)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}
	a.store = vectorstore.NewIsolationStore(index, emb, vectorstore.WithBatchSize(cfg.VectorStore.BatchSize))

	switch cfg.Sessions.Type {
	case "sqlite", "":
		st, err := sqlite.NewStore(cfg.Sessions.DataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.sessions = st
	case "memory":
		a.sessions = memory.New()
	default:
		a.Close()
		return nil, fmt.Errorf("%w: unknown session store %q", domain.ErrConfiguration, cfg.Sessions.Type)
	}
	return a, nil
}

// Close releases database handles in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		o := cfg.OpenAI
		return openaiemb.NewClient(openaiemb.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Dimensions:        o.Dimensions,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:        o.MaxRetries,
			RequestsPerSecond: o.RequestsPerSecond,
			Burst:             o.Burst,
		})
	case "ollama":
		oc := ollamaemb.DefaultConfig()
		if cfg.Ollama != nil {
			if cfg.Ollama.Host != "" {
				oc.Host = cfg.Ollama.Host
			}
			if cfg.Ollama.Model != "" {
				oc.Model = cfg.Ollama.Model
			}
			oc.Dimension = cfg.Ollama.Dimension
		}
		return ollamaemb.NewClient(oc)
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Type)
	}
}

func (a *app) newIndex(ctx context.Context, cfg config.VectorStoreConfig, emb domain.Embedder) (domain.VectorIndex, error) {
	switch cfg.Type {
	case "memory", "":
		if cfg.Memory == nil || cfg.Memory.Path == "" {
			return memindex.NewIndex(emb.Dimension()), nil
		}
		return memindex.Open(cfg.Memory.Path)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrConfiguration)
		}
		key := cfg.Qdrant.APIKey
		if key == "" && cfg.Qdrant.APIKeyEnv != "" {
			key = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		dim, err := vectorDimension(ctx, emb)
		if err != nil {
			return nil, err
		}
		idx := qdrant.NewIndex(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     key,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		})
		if err := idx.Init(ctx, dim); err != nil {
			return nil, err
		}
		return idx, nil
	case "pgvector":
		if cfg.PGVector == nil {
			return nil, fmt.Errorf("%w: pgvector config missing", domain.ErrConfiguration)
		}
		dsn := cfg.PGVector.DSN
		if dsn == "" && cfg.PGVector.DSNEnv != "" {
			dsn = os.Getenv(cfg.PGVector.DSNEnv)
		}
		if dsn == "" {
			return nil, fmt.Errorf("%w: pgvector dsn is empty", domain.ErrConfiguration)
		}
		dim, err := vectorDimension(ctx, emb)
		if err != nil {
			return nil, err
		}
		idx, err := pgvector.Open(ctx, pgvector.Config{
			DSN:       dsn,
			Table:     cfg.PGVector.Table,
			Dimension: dim,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, cfg.Type)
	}
}

// vectorDimension returns the embedder's vector length. Embedders that only
// learn it from a response embed a short text first.
func vectorDimension(ctx context.Context, emb domain.Embedder) (int, error) {
	if d := emb.Dimension(); d > 0 {
		return d, nil
	}
	v, err := emb.Embed(ctx, "dimension check")
	if err != nil {
		return 0, fmt.Errorf("learn embedding dimension: %w", err)
	}
	if len(v) == 0 {
		return 0, errors.New("learn embedding dimension: empty vector")
	}
	logger.Debug("embedder %s produces %d-dimensional vectors", emb.Name(), len(v))
	return len(v), nil
}

// newGenerator builds the configured model client. An empty instructions
// string keeps the provider's question-answering default.
func newGenerator(cfg config.LLMConfig, instructions string) (domain.Generator, error) {
	switch cfg.Type {
	case "openai", "":
		oc := openaillm.Config{Instructions: instructions}
		if cfg.OpenAI != nil {
			oc = openaillm.Config{
				BaseURL:         cfg.OpenAI.BaseURL,
				APIKeyEnv:       cfg.OpenAI.APIKeyEnv,
				Model:           cfg.OpenAI.Model,
				Instructions:    instructions,
				MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
				Timeout:         time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			}
		}
		return openaillm.NewGenerator(oc)
	case "ollama":
		oc := ollamallm.DefaultConfig()
		if instructions != "" {
			oc.System = instructions
		}
		if cfg.Ollama != nil {
			if cfg.Ollama.Host != "" {
				oc.Host = cfg.Ollama.Host
			}
			if cfg.Ollama.Model != "" {
				oc.Model = cfg.Ollama.Model
			}
		}
		return ollamallm.NewClient(oc)
	default:
		return nil, fmt.Errorf("%w: unknown llm %q", domain.ErrConfiguration, cfg.Type)
	}
}

func newSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequency(), nil
	case "llm":
		gen, err := newGenerator(cfg.LLM, summarizer.Instructions)
		if err != nil {
			return nil, err
		}
		return summarizer.NewGenerated(gen, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown summarizer %q", domain.ErrConfiguration, cfg.Summarizer.Type)
	}
}

func newTranscriber(cfg config.TranscriberConfig) (domain.Transcriber, error) {
	switch cfg.Type {
	case "whisper", "":
		wc := transcribe.WhisperConfig{APIKeyEnv: "OPENAI_API_KEY"}
		if cfg.Whisper != nil {
			wc = transcribe.WhisperConfig{
				BaseURL:   cfg.Whisper.BaseURL,
				APIKeyEnv: cfg.Whisper.APIKeyEnv,
				Model:     cfg.Whisper.Model,
				Language:  cfg.Whisper.Language,
				Timeout:   time.Duration(cfg.Whisper.TimeoutSecs) * time.Second,
			}
		}
		return transcribe.NewWhisper(wc)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown transcriber %q", domain.ErrConfiguration, cfg.Type)
	}
}

func newSelector(cfg config.ChunkerConfig) *chunker.Selector {
	fb := chunker.NewCharacterChunker(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
	)
	return chunker.NewSelector(fb, chunker.NewChapterChunker(chunker.WithMinChunkLength(cfg.MinChapterLength)), fb)
}

// pipeline assembles an ingestion pipeline with the collaborators in n.
func (a *app) pipeline(ctx context.Context, n needs) (*pipeline.Pipeline, error) {
	sum, err := newSummarizer(a.cfg)
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Store:      a.store,
		Sessions:   a.sessions,
		Selector:   newSelector(a.cfg.Chunker),
		Summarizer: sum,
	}
	if n.videos {
		yc := youtube.Config{
			APIKeyEnv:     a.cfg.YouTube.APIKeyEnv,
			TranscriptDir: a.cfg.YouTube.TranscriptDir,
			Endpoint:      a.cfg.YouTube.Endpoint,
			Languages:     a.cfg.YouTube.Languages,
			Offline:       a.cfg.YouTube.Offline,
		}
		if !yc.Offline {
			tr, err := newTranscriber(a.cfg.Transcriber)
			if err != nil {
				logger.Warn("videos without captions will be skipped: %v", err)
			} else if tr != nil {
				yc.Transcriber = tr
			}
		}
		src, err := youtube.NewSource(ctx, yc)
		if err != nil {
			return nil, fmt.Errorf("video source: %w", err)
		}
		deps.Videos = src
	}
	if n.transcriber {
		tr, err := newTranscriber(a.cfg.Transcriber)
		if err != nil {
			return nil, fmt.Errorf("transcriber: %w", err)
		}
		if tr != nil {
			deps.Transcriber = tr
		}
	}

	c := a.cfg.Chunker
	short := chunker.NewCharacterChunker(
		chunker.WithChunkSize(c.ShortVideoChunkSize),
		chunker.WithOverlap(c.ShortVideoOverlap),
	)
	return pipeline.New(deps,
		pipeline.WithMinTextLength(a.cfg.Pipeline.MinTextLength),
		pipeline.WithSummarySentences(a.cfg.Summarizer.MaxSentences),
		pipeline.WithLongVideo(c.LongVideoSecs, chunker.NewTimeWindowChunker(chunker.WithWindow(c.WindowSecs))),
		pipeline.WithShortVideoChunker(short),
	)
}

func (a *app) qa() (*pipeline.QA, error) {
	gen, err := newGenerator(a.cfg.LLM, "")
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return pipeline.NewQA(a.store, a.sessions, gen), nil
}
