package pipeline

import (
	"context"
	"fmt"
	"strings"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/vectorstore"
)

// NoAnswerMessage is the answer when retrieval finds nothing.
const NoAnswerMessage = "No relevant information found for your question."

// DefaultContextSources is how many retrieved chunks go into the prompt.
const DefaultContextSources = 3

// Source is one retrieved chunk cited by an answer.
type Source struct {
	ID           string  `json:"id"`
	Title        string  `json:"title,omitempty"`
	URL          string  `json:"url,omitempty"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	Timestamp    int     `json:"timestamp"`
	HasTimestamp bool    `json:"has_timestamp"`
	Score        float64 `json:"score"`
	Preview      string  `json:"preview"`
}

// Clock renders the timestamp as mm:ss.
func (s Source) Clock() string { return clock(s.Timestamp) }

// Link returns the URL positioned at the timestamp when both are known.
func (s Source) Link() string {
	if s.URL == "" || !s.HasTimestamp {
		return s.URL
	}
	sep := "?"
	if strings.Contains(s.URL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", s.URL, sep, s.Timestamp)
}

// Answer is the outcome of one question.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Found    bool     `json:"found"`
	Sources  []Source `json:"sources"`
}

// QA answers questions against the content of one session.
type QA struct {
	store    *vectorstore.IsolationStore
	sessions domain.SessionStore
	gen      domain.Generator
	sources  int
}

// NewQA creates a question answering service.
func NewQA(store *vectorstore.IsolationStore, sessions domain.SessionStore, gen domain.Generator) *QA {
	return &QA{store: store, sessions: sessions, gen: gen, sources: DefaultContextSources}
}

// Ask retrieves the chunks of the session's namespace closest to question
// and asks the generator to answer from the best of them.
func (q *QA) Ask(ctx context.Context, sessionID, question string, topK int) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	sess, err := q.sessions.Get(ctx, sessionID)
	if err != nil {
		return Answer{}, err
	}

	matches, err := q.store.QueryWithIsolation(ctx, vectorstore.QueryRequest{
		Text:      question,
		Topic:     sess.Topic,
		Namespace: sess.Namespace,
		TopK:      topK,
	})
	if err != nil {
		return Answer{}, err
	}
	ans := Answer{Question: question}
	if len(matches) == 0 {
		ans.Answer = NoAnswerMessage
		return ans, nil
	}
	if q.gen == nil {
		return Answer{}, fmt.Errorf("%w: no answer generator configured", domain.ErrConfiguration)
	}

	top := matches[:min(q.sources, len(matches))]
	ans.Sources = make([]Source, len(top))
	for i, m := range top {
		ans.Sources[i] = toSource(m)
	}
	logger.Debug("answering %q from %d of %d matches in %s", question, len(top), len(matches), sess.Namespace)

	text, err := q.gen.Generate(ctx, BuildPrompt(question, top))
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	ans.Answer = text
	ans.Found = true
	return ans, nil
}

// AnswerInstructions open every question prompt so that providers without a
// system prompt still answer from the excerpts alone.
const AnswerInstructions = "Answer the question using ONLY the information from the provided context. " +
	"If the context does not contain the answer, say that you do not know. " +
	"When a source has a timestamp, cite it in [mm:ss] form."

// BuildPrompt lays out the instructions and the retrieved chunks followed by
// the question.
func BuildPrompt(question string, matches []domain.Match) string {
	var b strings.Builder
	b.WriteString(AnswerInstructions)
	b.WriteString("\n\nContext:\n")
	for i, m := range matches {
		src := toSource(m)
		fmt.Fprintf(&b, "\n--- Source %d ---\n", i+1)
		if src.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", src.Title)
		}
		if src.ChapterTitle != "" {
			fmt.Fprintf(&b, "Chapter: %s\n", src.ChapterTitle)
		}
		if src.HasTimestamp {
			fmt.Fprintf(&b, "Timestamp: [%s]", src.Clock())
			if link := src.Link(); link != "" {
				fmt.Fprintf(&b, " %s", link)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Content:\n%s\n", strings.TrimSpace(m.Text))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer:", question)
	return b.String()
}

func toSource(m domain.Match) Source {
	src := Source{
		ID:           m.ID,
		Title:        domain.MetaString(m.Metadata, AttrTitle),
		URL:          domain.MetaString(m.Metadata, AttrURL),
		ChapterTitle: domain.MetaString(m.Metadata, domain.MetaChapterTitle),
		Score:        m.Score,
		Preview:      domain.Preview(m.Text),
	}
	ts, ok := domain.MetaInt(m.Metadata, domain.MetaTimestamp)
	if timed, _ := domain.MetaBool(m.Metadata, domain.MetaTimed); ok && timed {
		src.Timestamp, src.HasTimestamp = ts, true
	}
	return src
}

func clock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
