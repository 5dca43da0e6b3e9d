// Package chunker converts transcripts into bounded, timestamp-addressable chunks.
//
// Three strategies are provided: ChapterChunker (one chunk per chapter),
// TimeWindowChunker (fixed-duration groups of timed segments) and
// CharacterChunker (boundary-aware fixed-size windows with overlap). A Selector
// tries strategies in priority order and always falls back to CharacterChunker.
package chunker

import (
	"fmt"
	"maps"
	"unicode/utf8"

	"topicrag/internal/domain"
)

// Strategy is one way of chunking a source.
type Strategy interface {
	// Name is the short tag used in chunk ids.
	Name() string
	// CanHandle is a cheap, side-effect-free probe of the source metadata.
	CanHandle(meta domain.SourceMetadata) bool
	// Chunk splits text into ordered chunks. An empty result means the
	// strategy declined and the caller should try the next one.
	Chunk(text, sourceID string, meta domain.SourceMetadata) ([]domain.Chunk, error)
}

// unknownDurationCharsPerSecond is the speech-rate estimate used when the
// source duration is unknown.
const unknownDurationCharsPerSecond = 0.1

// charsPerSecond estimates the speech rate used to map seconds onto text offsets.
func charsPerSecond(textLen, durationSec int) float64 {
	if durationSec <= 0 {
		return unknownDurationCharsPerSecond
	}
	return float64(textLen) / float64(durationSec)
}

func chunkID(sourceID, strategy string, index int) string {
	return fmt.Sprintf("%s-%s-%d", sourceID, strategy, index)
}

// sourceAttributes copies the caller's attributes so chunks never share a map.
func sourceAttributes(meta domain.SourceMetadata) map[string]any {
	if meta.Attributes == nil {
		return map[string]any{}
	}
	return maps.Clone(meta.Attributes)
}

// setTotals stamps total_chunks once the final count is known.
func setTotals(chunks []domain.Chunk) {
	for i := range chunks {
		chunks[i].Metadata.TotalChunks = len(chunks)
	}
}

// alignRune moves a byte offset forward to the next rune boundary.
func alignRune(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}
