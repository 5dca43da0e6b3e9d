package domain

// ChunkType records which strategy produced a chunk.
type ChunkType string

const (
	ChunkTypeChapter   ChunkType = "chapter"
	ChunkTypeCharacter ChunkType = "character"
	ChunkTypeTimeBased ChunkType = "time_based"
)

// PreviewLength is the number of bytes kept in the text_preview field.
const PreviewLength = 200

// Metadata keys written on chunks and vector records.
const (
	MetaChunkIndex   = "chunk_index"
	MetaTotalChunks  = "total_chunks"
	MetaChunkType    = "chunk_type"
	MetaTimestamp    = "timestamp"
	MetaTimed        = "timed"
	MetaChapterTitle = "chapter_title"
	MetaStartTime    = "start_time"
	MetaEndTime      = "end_time"
	MetaTextPreview  = "text_preview"
	MetaText         = "text"
	MetaTopic        = "topic"
	MetaTopicHash    = "topic_hash"
)

// Chunk is a bounded span of source text prepared for embedding.
// Chunks are immutable once produced.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata is the provenance of a chunk.
type ChunkMetadata struct {
	ChunkIndex   int
	TotalChunks  int
	ChunkType    ChunkType
	Timestamp    int
	// Timed is false when Timestamp carries no playback meaning, as for
	// plain text uploads.
	Timed        bool
	ChapterTitle string
	StartTime    int
	// EndTime is zero when the strategy has no notion of a chunk end.
	EndTime     int
	TextPreview string
	Source      map[string]any
}

// Map flattens the metadata into the key/value form stored alongside vectors.
// Source attributes never override the provenance keys.
func (m ChunkMetadata) Map() map[string]any {
	out := make(map[string]any, len(m.Source)+9)
	for k, v := range m.Source {
		out[k] = v
	}
	out[MetaChunkIndex] = m.ChunkIndex
	out[MetaTotalChunks] = m.TotalChunks
	out[MetaChunkType] = string(m.ChunkType)
	out[MetaTimestamp] = m.Timestamp
	out[MetaTimed] = m.Timed
	out[MetaTextPreview] = m.TextPreview
	if m.ChapterTitle != "" {
		out[MetaChapterTitle] = m.ChapterTitle
	}
	if m.EndTime > 0 {
		out[MetaStartTime] = m.StartTime
		out[MetaEndTime] = m.EndTime
	}
	return out
}

// Preview truncates text to PreviewLength bytes without splitting a rune.
func Preview(text string) string {
	if len(text) <= PreviewLength {
		return text
	}
	cut := PreviewLength
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
