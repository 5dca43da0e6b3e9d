package chunker

import (
	"strings"
	"unicode/utf8"

	"topicrag/internal/domain"
)

// DefaultChunkSize is the default target chunk length in bytes.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of bytes repeated between chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order: paragraph, line, sentence, word, and
// finally a hard cut between characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// CharacterChunker splits text into overlapping windows, preferring natural
// boundaries. It handles every source and is the selector's fallback.
type CharacterChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// CharacterOption configures a CharacterChunker.
type CharacterOption func(*CharacterChunker)

// WithChunkSize sets the target chunk length.
func WithChunkSize(size int) CharacterOption {
	return func(c *CharacterChunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks.
func WithOverlap(overlap int) CharacterOption {
	return func(c *CharacterChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the boundary list. An empty string means "cut anywhere".
func WithSeparators(seps ...string) CharacterOption {
	return func(c *CharacterChunker) {
		if len(seps) > 0 {
			c.separators = append([]string(nil), seps...)
		}
	}
}

// NewCharacterChunker creates a character chunker.
func NewCharacterChunker(opts ...CharacterOption) *CharacterChunker {
	c := &CharacterChunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Name returns the strategy tag.
func (c *CharacterChunker) Name() string { return "chunk" }

// CanHandle always reports true.
func (c *CharacterChunker) CanHandle(domain.SourceMetadata) bool { return true }

// ChunkSize returns the configured target size.
func (c *CharacterChunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *CharacterChunker) Overlap() int { return c.overlap }

// Chunk splits text and estimates a timestamp for every chunk from its offset
// in the original text: through the segment table when the source has timed
// segments, otherwise through the speech-rate estimate. Chunks of sources
// without a timeline are marked untimed.
func (c *CharacterChunker) Chunk(text, sourceID string, meta domain.SourceMetadata) ([]domain.Chunk, error) {
	pieces := c.Split(text)
	if len(pieces) == 0 {
		return nil, nil
	}

	var mapper *TimestampMapper
	if len(meta.Segments) > 0 {
		mapper = NewTimestampMapper(meta.Segments)
	}
	cps := charsPerSecond(len(text), meta.DurationSec)
	timed := meta.HasTimeline()

	chunks := make([]domain.Chunk, 0, len(pieces))
	cursor := 0
	for i, piece := range pieces {
		pos := locate(text, piece, cursor)
		// the next piece repeats at most overlap bytes of this one
		cursor = pos + max(len(piece)-c.overlap, 1)

		var ts int
		switch {
		case mapper != nil:
			ts = mapper.Lookup(pos)
		case timed:
			ts = int(float64(pos) / cps)
		}
		chunks = append(chunks, domain.Chunk{
			ID:   chunkID(sourceID, c.Name(), i),
			Text: piece,
			Metadata: domain.ChunkMetadata{
				ChunkIndex:  i,
				ChunkType:   domain.ChunkTypeCharacter,
				Timestamp:   ts,
				Timed:       timed,
				StartTime:   ts,
				TextPreview: domain.Preview(piece),
				Source:      sourceAttributes(meta),
			},
		})
	}
	setTotals(chunks)
	return chunks, nil
}

// Split returns the chunk texts without metadata. Every returned string is a
// trimmed substring of text no longer than the chunk size.
func (c *CharacterChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.splitRecursive(text, c.separators)
}

func (c *CharacterChunker) splitRecursive(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out, small []string
	for _, s := range splitKeep(text, sep) {
		if len(s) < c.chunkSize {
			small = append(small, s)
			continue
		}
		if len(small) > 0 {
			out = append(out, c.merge(small)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, c.hardCut(s)...)
		} else {
			out = append(out, c.splitRecursive(s, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, c.merge(small)...)
	}
	return out
}

// merge packs consecutive splits into chunks of at most chunkSize bytes,
// carrying up to overlap bytes of trailing splits into the next chunk.
func (c *CharacterChunker) merge(splits []string) []string {
	var docs, current []string
	total := 0
	for _, d := range splits {
		l := len(d)
		if total+l > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.overlap || (total+l > c.chunkSize && total > 0) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func (c *CharacterChunker) hardCut(s string) []string {
	var out []string
	for start := 0; start < len(s); {
		end := start + c.chunkSize
		if end >= len(s) {
			end = len(s)
		} else {
			for end > start && !utf8.RuneStart(s[end]) {
				end--
			}
			if end == start {
				end = alignRune(s, start+1)
			}
		}
		if piece := strings.TrimSpace(s[start:end]); piece != "" {
			out = append(out, piece)
		}
		start = end
	}
	return out
}

// splitKeep splits text after every occurrence of sep, so the parts
// concatenate back to text. An empty separator splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for i, w := 0, 0; i < len(text); i += w {
			_, w = utf8.DecodeRuneInString(text[i:])
			out = append(out, text[i:i+w])
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// locate finds piece in text at or after cursor.
func locate(text, piece string, cursor int) int {
	if cursor < 0 || cursor > len(text) {
		cursor = 0
	}
	if i := strings.Index(text[cursor:], piece); i >= 0 {
		return cursor + i
	}
	if i := strings.Index(text, piece); i >= 0 {
		return i
	}
	return cursor
}
