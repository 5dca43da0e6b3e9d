package domain

import "time"

// InputMethod names how content entered the system.
type InputMethod string

const (
	InputTopicSearch      InputMethod = "topic_search"
	InputVideoLink        InputMethod = "youtube_link"
	InputMediaUpload      InputMethod = "audio_video_upload"
	InputTranscriptUpload InputMethod = "script_upload"
)

// SessionStatus is the state of a persisted session.
type SessionStatus string

const StatusProcessed SessionStatus = "processed"

// VideoSummary is the per-video summary kept on topic search sessions.
type VideoSummary struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	DurationSec int    `json:"duration_sec"`
	NumChapters int    `json:"num_chapters"`
}

// Session records one successful ingestion run. Deleting a session leaves
// its vectors in place; the namespace is the durable content record.
type Session struct {
	SessionID       string          `json:"session_id"`
	InputMethod     InputMethod     `json:"input_method"`
	Topic           string          `json:"topic"`
	Namespace       string          `json:"namespace"`
	ChunkCount      int             `json:"chunk_count"`
	VectorsUpserted int             `json:"vectors_upserted"`
	Status          SessionStatus   `json:"status"`
	Summary         string          `json:"summary,omitempty"`
	Source          string          `json:"source,omitempty"`
	Strategy        string          `json:"strategy,omitempty"`
	VideoSummaries  []VideoSummary  `json:"video_summaries,omitempty"`
	MissingSources  []MissingSource `json:"missing_sources,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Stage is a step of the ingestion state machine.
type Stage string

const (
	StageFetched          Stage = "fetched"
	StageChunked          Stage = "chunked"
	StageEmbedded         Stage = "embedded"
	StageStored           Stage = "stored"
	StageSessionPersisted Stage = "session_persisted"
)

// IngestResult is the structured outcome of an ingestion. On failure Stage is
// the stage that was being attempted and Err holds the cause.
type IngestResult struct {
	Success         bool            `json:"success"`
	Stage           Stage           `json:"stage"`
	Error           string          `json:"error,omitempty"`
	Err             error           `json:"-"`
	Session         *Session        `json:"session,omitempty"`
	Namespace       string          `json:"namespace,omitempty"`
	Topic           string          `json:"topic,omitempty"`
	ChunkCount      int             `json:"chunk_count"`
	VectorsUpserted int             `json:"vectors_upserted"`
	SkippedChunks   int             `json:"skipped_chunks"`
	MissingSources  []MissingSource `json:"missing_sources,omitempty"`
}
