package chunker

import (
	"fmt"
	"strings"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
)

// DefaultMinChunkLength is the shortest chapter text worth keeping, in bytes.
const DefaultMinChunkLength = 50

// defaultLastChapterSec bounds the last chapter when the duration is unknown.
const defaultLastChapterSec = 300

// ChapterChunker emits one chunk per chapter. With timed segments each segment
// goes to the chapter its start falls in. Without them chapter boundaries in
// seconds are mapped onto the text with a uniform speech-rate estimate, so
// positions are approximate.
type ChapterChunker struct {
	minLength int
}

// ChapterOption configures a ChapterChunker.
type ChapterOption func(*ChapterChunker)

// WithMinChunkLength sets the minimum stripped length of an emitted chapter.
func WithMinChunkLength(n int) ChapterOption {
	return func(c *ChapterChunker) {
		if n >= 0 {
			c.minLength = n
		}
	}
}

// NewChapterChunker creates a chapter chunker.
func NewChapterChunker(opts ...ChapterOption) *ChapterChunker {
	c := &ChapterChunker{minLength: DefaultMinChunkLength}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the strategy tag.
func (c *ChapterChunker) Name() string { return "chapter" }

// CanHandle reports whether the source has at least two chapters.
func (c *ChapterChunker) CanHandle(meta domain.SourceMetadata) bool {
	return len(meta.Chapters) >= 2
}

// Chunk assigns text to chapters by segment time, or slices it at the
// estimated character positions of each chapter. Malformed chapters are
// skipped, as are chapters whose text is shorter than the minimum length.
func (c *ChapterChunker) Chunk(text, sourceID string, meta domain.SourceMetadata) ([]domain.Chunk, error) {
	if text == "" || !c.CanHandle(meta) {
		return nil, nil
	}
	cps := charsPerSecond(len(text), meta.DurationSec)
	chapters := meta.Chapters

	var chunks []domain.Chunk
	lastStart := -1
	for i, ch := range chapters {
		if ch.Start < 0 || ch.Start <= lastStart {
			logger.Debug("chapter %d of %s: start %ds out of order, skipped", i, sourceID, ch.Start)
			continue
		}
		lastStart = ch.Start

		end := chapterEnd(chapters, i, meta.DurationSec)
		if end <= ch.Start {
			logger.Debug("chapter %d of %s: empty range %d-%d, skipped", i, sourceID, ch.Start, end)
			continue
		}

		var body string
		if len(meta.Segments) > 0 {
			body = segmentText(meta.Segments, float64(ch.Start), float64(end))
		} else {
			startChar := alignRune(text, int(float64(ch.Start)*cps))
			endChar := alignRune(text, int(float64(end)*cps))
			if startChar >= endChar {
				continue
			}
			body = strings.TrimSpace(text[startChar:endChar])
		}
		if body == "" || len(body) < c.minLength {
			logger.Debug("chapter %d of %s: %d chars below minimum %d", i, sourceID, len(body), c.minLength)
			continue
		}

		title := strings.TrimSpace(ch.Title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:   chunkID(sourceID, c.Name(), idx),
			Text: body,
			Metadata: domain.ChunkMetadata{
				ChunkIndex:   idx,
				ChunkType:    domain.ChunkTypeChapter,
				Timestamp:    ch.Start,
				Timed:        true,
				ChapterTitle: title,
				StartTime:    ch.Start,
				EndTime:      end,
				TextPreview:  domain.Preview(body),
				Source:       sourceAttributes(meta),
			},
		})
	}
	setTotals(chunks)
	return chunks, nil
}

// segmentText joins the segments starting in [start, end).
func segmentText(segments []domain.TimedSegment, start, end float64) string {
	var parts []string
	for _, seg := range segments {
		if seg.Start < start || seg.Start >= end {
			continue
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// chapterEnd resolves the end of chapter i: explicit end, else the next
// chapter's start, else the source duration, else a bounded default.
func chapterEnd(chapters []domain.ChapterMarker, i, durationSec int) int {
	if e := chapters[i].End; e != nil {
		return *e
	}
	if i+1 < len(chapters) {
		return chapters[i+1].Start
	}
	if durationSec > 0 {
		return durationSec
	}
	return chapters[i].Start + defaultLastChapterSec
}
