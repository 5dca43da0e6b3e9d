package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkMetadata_Map(t *testing.T) {
	t.Run("provenance keys win over source attributes", func(t *testing.T) {
		md := ChunkMetadata{
			ChunkIndex:  2,
			TotalChunks: 5,
			ChunkType:   ChunkTypeChapter,
			Timestamp:   120,
			Source:      map[string]any{"title": "Intro", MetaChunkIndex: 99},
		}
		m := md.Map()
		assert.Equal(t, 2, m[MetaChunkIndex])
		assert.Equal(t, 5, m[MetaTotalChunks])
		assert.Equal(t, "chapter", m[MetaChunkType])
		assert.Equal(t, 120, m[MetaTimestamp])
		assert.Equal(t, false, m[MetaTimed])
		assert.Equal(t, "Intro", m["title"])

		assert.Equal(t, true, ChunkMetadata{Timed: true}.Map()[MetaTimed])
	})

	t.Run("optional keys only when set", func(t *testing.T) {
		m := ChunkMetadata{ChunkType: ChunkTypeCharacter}.Map()
		_, hasTitle := m[MetaChapterTitle]
		_, hasEnd := m[MetaEndTime]
		assert.False(t, hasTitle)
		assert.False(t, hasEnd)

		m = ChunkMetadata{ChapterTitle: "B", StartTime: 120, EndTime: 300}.Map()
		assert.Equal(t, "B", m[MetaChapterTitle])
		assert.Equal(t, 120, m[MetaStartTime])
		assert.Equal(t, 300, m[MetaEndTime])
	})
}

func TestPreview(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Preview(short))

	long := strings.Repeat("a", 250)
	assert.Len(t, Preview(long), PreviewLength)

	// a two-byte rune straddling the cut point is dropped whole
	multi := strings.Repeat("a", PreviewLength-1) + "é" + "tail"
	got := Preview(multi)
	assert.Equal(t, strings.Repeat("a", PreviewLength-1), got)
}

func TestMetaInt(t *testing.T) {
	md := map[string]any{"a": 3, "b": float64(7), "c": "x"}
	v, ok := MetaInt(md, "a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = MetaInt(md, "b")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = MetaInt(md, "c")
	assert.False(t, ok)
	assert.Equal(t, "x", MetaString(md, "c"))
	assert.Equal(t, "", MetaString(md, "a"))
}

func TestNoContentError(t *testing.T) {
	err := &NoContentError{
		Reason:  "no transcripts for 2 videos",
		Missing: []MissingSource{{ID: "abc"}, {ID: "def"}},
	}
	wrapped := fmt.Errorf("ingest: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNoContent))
	assert.Contains(t, err.Error(), "abc, def")

	var nc *NoContentError
	assert.True(t, errors.As(wrapped, &nc))
	assert.Len(t, nc.Missing, 2)
}

func TestTranscript_Duration(t *testing.T) {
	assert.Equal(t, 90, Transcript{DurationSec: 90}.Duration())
	tr := Transcript{Segments: []TimedSegment{{Start: 0, Duration: 2}, {Start: 10.5, Duration: 4}}}
	assert.Equal(t, 14, tr.Duration())
	assert.Equal(t, 0, Transcript{}.Duration())
}
