package chunker

import (
	"topicrag/internal/domain"
	"topicrag/internal/logger"
)

// Selection is the outcome of running a Selector over one source.
type Selection struct {
	Chunks []domain.Chunk
	// Strategy is the name of the strategy that produced Chunks.
	Strategy string
}

// Selector tries strategies in priority order. The first applicable strategy
// that returns a non-empty result wins; a strategy that fails is logged and
// skipped. If every strategy declines, the fallback character chunker runs.
type Selector struct {
	strategies []Strategy
	fallback   *CharacterChunker
}

// NewSelector creates a selector over strategies, highest priority first.
// A nil fallback uses a default CharacterChunker.
func NewSelector(fallback *CharacterChunker, strategies ...Strategy) *Selector {
	if fallback == nil {
		fallback = NewCharacterChunker()
	}
	return &Selector{
		strategies: append([]Strategy(nil), strategies...),
		fallback:   fallback,
	}
}

// Default returns the standard order: chapters first, then character windows.
func Default() *Selector {
	fb := NewCharacterChunker()
	return NewSelector(fb, NewChapterChunker(), fb)
}

// Insert adds s at priority position pos. Out-of-range positions append.
func (s *Selector) Insert(st Strategy, pos int) {
	if pos < 0 || pos >= len(s.strategies) {
		s.strategies = append(s.strategies, st)
		return
	}
	s.strategies = append(s.strategies[:pos], append([]Strategy{st}, s.strategies[pos:]...)...)
}

// Clone returns an independent copy, so per-source insertions do not leak
// into a shared selector.
func (s *Selector) Clone() *Selector {
	return NewSelector(s.fallback, s.strategies...)
}

// Strategies returns the strategy names in priority order.
func (s *Selector) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

// Chunk runs the strategies over one source. It returns at least one chunk
// for any text with a non-whitespace character.
func (s *Selector) Chunk(text, sourceID string, meta domain.SourceMetadata) Selection {
	for _, st := range s.strategies {
		if !st.CanHandle(meta) {
			continue
		}
		chunks, err := st.Chunk(text, sourceID, meta)
		if err != nil {
			logger.Warn("chunking %s with %s failed: %v", sourceID, st.Name(), err)
			continue
		}
		if len(chunks) > 0 {
			logger.Debug("chunked %s with %s: %d chunks", sourceID, st.Name(), len(chunks))
			return Selection{Chunks: chunks, Strategy: st.Name()}
		}
		logger.Debug("strategy %s produced no chunks for %s", st.Name(), sourceID)
	}
	chunks, _ := s.fallback.Chunk(text, sourceID, meta)
	return Selection{Chunks: chunks, Strategy: s.fallback.Name()}
}

// DefaultLongVideoSec is the duration from which chapterless videos with
// timed segments are chunked by time window.
const DefaultLongVideoSec = 600

// SelectForDuration returns a copy of base that tries window first when the
// source has no chapters, has timed segments and lasts at least longSec.
func SelectForDuration(base *Selector, meta domain.SourceMetadata, longSec int, window Strategy) *Selector {
	sel := base.Clone()
	if len(meta.Chapters) < 2 && len(meta.Segments) > 0 && meta.DurationSec >= longSec {
		sel.Insert(window, 0)
	}
	return sel
}
