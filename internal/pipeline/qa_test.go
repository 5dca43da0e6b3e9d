package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

type stubGenerator struct {
	prompt string
	out    string
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.out, g.err
}

func TestQA_Ask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.deps.Videos = videoFixture()
	res := f.pipeline(t).IngestVideoLink(ctx, "https://www.youtube.com/watch?v=longvideo12")
	require.True(t, res.Success, res.Error)

	gen := &stubGenerator{out: "Worker pools bound concurrency."}
	qa := NewQA(f.store, f.sessions, gen)
	ans, err := qa.Ask(ctx, res.Session.SessionID, "What is a worker pool?", 5)
	require.NoError(t, err)

	assert.True(t, ans.Found)
	assert.Equal(t, "Worker pools bound concurrency.", ans.Answer)
	assert.Len(t, ans.Sources, 3)
	assert.Contains(t, gen.prompt, "--- Source 1 ---")
	assert.Contains(t, gen.prompt, "Question: What is a worker pool?")
	assert.Contains(t, gen.prompt, "Title: Worker Pools")
	assert.Regexp(t, `Timestamp: \[\d{2}:\d{2}\] https://www\.youtube\.com/watch\?v=longvideo12&t=\d+s`, gen.prompt)
	assert.NotContains(t, gen.prompt, "--- Source 4 ---")
}

func TestQA_AskLimitsContextToThree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.deps.Selector = smallChunks()
	res := f.pipeline(t).IngestTranscript(ctx, TranscriptUpload{Filename: "notes.txt", Data: []byte(paragraphs(6, func(int) string { return "" }))})
	require.True(t, res.Success, res.Error)

	gen := &stubGenerator{out: "ok"}
	ans, err := NewQA(f.store, f.sessions, gen).Ask(ctx, res.Session.SessionID, "goroutines?", 10)
	require.NoError(t, err)
	assert.Len(t, ans.Sources, DefaultContextSources)
	assert.Equal(t, DefaultContextSources, strings.Count(gen.prompt, "--- Source"))
	for i := 1; i < len(ans.Sources); i++ {
		assert.GreaterOrEqual(t, ans.Sources[i-1].Score, ans.Sources[i].Score)
	}
}

func TestQA_AskUntimedUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.deps.Selector = smallChunks()
	res := f.pipeline(t).IngestTranscript(ctx, TranscriptUpload{Filename: "notes.txt", Data: []byte(paragraphs(4, func(int) string { return "" }))})
	require.True(t, res.Success, res.Error)

	gen := &stubGenerator{out: "ok"}
	ans, err := NewQA(f.store, f.sessions, gen).Ask(ctx, res.Session.SessionID, "goroutines?", 3)
	require.NoError(t, err)

	require.NotEmpty(t, ans.Sources)
	for _, s := range ans.Sources {
		assert.False(t, s.HasTimestamp)
	}
	assert.NotContains(t, gen.prompt, "Timestamp:")
	assert.True(t, strings.HasPrefix(gen.prompt, AnswerInstructions))
}

func TestBuildPrompt_Grounding(t *testing.T) {
	matches := []domain.Match{{
		ID:   "v-chapter-0",
		Text: "A channel is a typed conduit.",
		Metadata: map[string]any{
			domain.MetaTimestamp: 75,
			domain.MetaTimed:     true,
			AttrURL:              "https://youtu.be/v",
		},
	}}
	prompt := BuildPrompt("What is a channel?", matches)

	assert.Contains(t, prompt, "using ONLY the information from the provided context")
	assert.Less(t, strings.Index(prompt, AnswerInstructions), strings.Index(prompt, "Context:"))
	assert.Contains(t, prompt, "Timestamp: [01:15] https://youtu.be/v?t=75s")

	delete(matches[0].Metadata, domain.MetaTimed)
	assert.NotContains(t, BuildPrompt("What is a channel?", matches), "Timestamp:")
}

func TestQA_NoMatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.sessions.Save(ctx, domain.Session{SessionID: "s1", Topic: "empty", Namespace: "topic-0000000000000000"}))

	gen := &stubGenerator{}
	ans, err := NewQA(f.store, f.sessions, gen).Ask(ctx, "s1", "anything?", 5)
	require.NoError(t, err)
	assert.False(t, ans.Found)
	assert.Equal(t, NoAnswerMessage, ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, gen.prompt)
}

func TestQA_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	res := f.pipeline(t).IngestTranscript(ctx, TranscriptUpload{Filename: "notes.txt", Data: []byte(paragraphs(2, func(int) string { return "" }))})
	require.True(t, res.Success, res.Error)
	id := res.Session.SessionID

	tests := []struct {
		name    string
		gen     domain.Generator
		session string
		q       string
		want    error
	}{
		{"empty question", &stubGenerator{}, id, "  ", domain.ErrInvalidInput},
		{"unknown session", &stubGenerator{}, "nope", "q", domain.ErrNotFound},
		{"no generator", nil, id, "q", domain.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQA(f.store, f.sessions, tt.gen).Ask(ctx, tt.session, tt.q, 3)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("generator failure", func(t *testing.T) {
		_, err := NewQA(f.store, f.sessions, &stubGenerator{err: errors.New("quota")}).Ask(ctx, id, "q", 3)
		assert.ErrorContains(t, err, "quota")
	})
}

func TestSource_Link(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want string
	}{
		{"watch url", Source{URL: "https://www.youtube.com/watch?v=abc", Timestamp: 75, HasTimestamp: true}, "https://www.youtube.com/watch?v=abc&t=75s"},
		{"plain url", Source{URL: "https://youtu.be/abc", Timestamp: 5, HasTimestamp: true}, "https://youtu.be/abc?t=5s"},
		{"no timestamp", Source{URL: "https://youtu.be/abc"}, "https://youtu.be/abc"},
		{"no url", Source{Timestamp: 5, HasTimestamp: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.src.Link())
		})
	}
	assert.Equal(t, "01:15", Source{Timestamp: 75}.Clock())
	assert.Equal(t, "62:05", Source{Timestamp: 3725}.Clock())
}
