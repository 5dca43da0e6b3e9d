package chunker

import (
	"strings"

	"topicrag/internal/domain"
)

// DefaultWindowSec is the default length of a time window.
const DefaultWindowSec = 300

// TimeWindowChunker groups whole timed segments into fixed-duration windows.
// A segment is never split across windows.
type TimeWindowChunker struct {
	window float64
}

// TimeWindowOption configures a TimeWindowChunker.
type TimeWindowOption func(*TimeWindowChunker)

// WithWindow sets the window length in seconds.
func WithWindow(sec int) TimeWindowOption {
	return func(c *TimeWindowChunker) {
		if sec > 0 {
			c.window = float64(sec)
		}
	}
}

// NewTimeWindowChunker creates a time window chunker.
func NewTimeWindowChunker(opts ...TimeWindowOption) *TimeWindowChunker {
	c := &TimeWindowChunker{window: DefaultWindowSec}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the strategy tag.
func (c *TimeWindowChunker) Name() string { return "time" }

// CanHandle reports whether the source has timed segments.
func (c *TimeWindowChunker) CanHandle(meta domain.SourceMetadata) bool {
	return len(meta.Segments) > 0
}

// Chunk ignores text and builds chunks from meta.Segments. A new window
// opens at the first segment starting at least one window length after the
// current window's start. The final window is always emitted.
func (c *TimeWindowChunker) Chunk(_ string, sourceID string, meta domain.SourceMetadata) ([]domain.Chunk, error) {
	if !c.CanHandle(meta) {
		return nil, nil
	}

	var (
		chunks      []domain.Chunk
		parts       []string
		windowStart = meta.Segments[0].Start
		windowEnd   float64
	)
	flush := func() {
		text := strings.Join(parts, " ")
		end := windowEnd
		parts, windowEnd = parts[:0], 0
		if text == "" {
			return
		}
		idx := len(chunks)
		start := int(windowStart)
		chunks = append(chunks, domain.Chunk{
			ID:   chunkID(sourceID, c.Name(), idx),
			Text: text,
			Metadata: domain.ChunkMetadata{
				ChunkIndex:  idx,
				ChunkType:   domain.ChunkTypeTimeBased,
				Timestamp:   start,
				Timed:       true,
				StartTime:   start,
				EndTime:     int(end),
				TextPreview: domain.Preview(text),
				Source:      sourceAttributes(meta),
			},
		})
	}

	for _, seg := range meta.Segments {
		if seg.Start-windowStart >= c.window {
			flush()
			windowStart = seg.Start
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
		if end := seg.End(); end > windowEnd {
			windowEnd = end
		}
	}
	flush()
	setTotals(chunks)
	return chunks, nil
}
