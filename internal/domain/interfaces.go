package domain

import "context"

// Embedder converts free text into a fixed-length vector.
// Dimension is fixed for the lifetime of the embedder.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is a single shared vector index partitioned by namespace.
// Every operation is scoped to exactly one namespace, except DescribeStats.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]Match, error)
	// Sample returns up to limit records from a namespace in no particular order.
	Sample(ctx context.Context, namespace string, limit int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	DescribeStats(ctx context.Context) (IndexStats, error)
}

// Transcriber turns uploaded media into text with optional timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, data []byte) (Transcript, error)
}

// VideoSource finds videos and their transcripts.
type VideoSource interface {
	Search(ctx context.Context, topic string, maxResults int) ([]Video, error)
	Video(ctx context.Context, videoID string) (Video, error)
	Transcript(ctx context.Context, videoID string) (Transcript, error)
}

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxSentences int) (string, error)
}

// SessionStore persists ingestion sessions.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	// Get returns ErrNotFound when the session does not exist.
	Get(ctx context.Context, sessionID string) (Session, error)
	// List returns sessions newest first.
	List(ctx context.Context, limit int) ([]Session, error)
	Delete(ctx context.Context, sessionID string) error
}
