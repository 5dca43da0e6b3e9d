package summarizer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
)

// DefaultInputChars caps how much text is sent to the model.
const DefaultInputChars = 12000

// Instructions is the system prompt for a generator dedicated to summaries.
const Instructions = "You write short factual summaries of video and audio transcripts. " +
	"Use only what the transcript says and do not add outside knowledge."

// Generated asks a language model for the summary and falls back to another
// summarizer when the model fails.
type Generated struct {
	gen      domain.Generator
	fallback domain.Summarizer
	maxInput int
	timeout  time.Duration
}

// NewGenerated creates a model-backed summarizer. A nil fallback uses Frequency.
func NewGenerated(gen domain.Generator, fallback domain.Summarizer) *Generated {
	if fallback == nil {
		fallback = NewFrequency()
	}
	return &Generated{gen: gen, fallback: fallback, maxInput: DefaultInputChars, timeout: 2 * time.Minute}
}

func (s *Generated) Summarize(ctx context.Context, text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Summarize the following transcript in at most %d sentences. "+
		"Mention the main subjects covered.\n\nTranscript:\n%s", maxSentences, truncate(text, s.maxInput))
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("model summary failed, using extractive summary: %v", err)
		return s.fallback.Summarize(ctx, text, maxSentences)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
