// Package tui is a terminal question and answer front end over one session.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"topicrag/internal/domain"
	"topicrag/internal/pipeline"
)

// Asker is the TUI-facing subset of the QA service.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string, topK int) (pipeline.Answer, error)
}

// askTimeout bounds one question, retrieval plus generation.
const askTimeout = 2 * time.Minute

type answerMsg struct {
	answer pipeline.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	qa       Asker
	session  domain.Session
	topK     int
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	answer   *pipeline.Answer
	status   string
	cursor   int
	asking   bool
	ready    bool
}

// New creates a new TUI model for session.
func New(qa Asker, session domain.Session, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		qa:       qa,
		session:  session,
		topK:     topK,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   fmt.Sprintf("Session %s: %d chunks. Ask away.", session.SessionID, session.ChunkCount),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		ans, err := m.qa.Ask(ctx, m.session.SessionID, q, m.topK)
		return answerMsg{answer: ans, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.asking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.answer = &msg.answer
			m.cursor = 0
			m.status = fmt.Sprintf("%d sources for %q", len(msg.answer.Sources), msg.answer.Question)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case spinner.TickMsg:
		if !m.asking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.asking {
				return m, nil
			}
			m.asking = true
			m.input.SetValue("")
			m.status = fmt.Sprintf("Asking %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "down":
			if n := m.sourceCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if n := m.sourceCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("topicrag: " + m.session.Topic)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(firstLine(m.session.Summary))
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.asking {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) sourceCount() int {
	if m.answer == nil {
		return 0
	}
	return len(m.answer.Sources)
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Answer))
	if len(m.answer.Sources) == 0 {
		return b.String()
	}
	src := m.answer.Sources[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  score=%.3f", m.cursor+1, len(m.answer.Sources), src.Score)
	if src.HasTimestamp {
		fmt.Fprintf(&b, "  [%s]", src.Clock())
	}
	if src.ChapterTitle != "" {
		fmt.Fprintf(&b, "  %s", src.ChapterTitle)
	}
	if link := src.Link(); link != "" {
		fmt.Fprintf(&b, "\n%s", linkStyle.Render(link))
	}
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(src.Preview, m.answer.Question))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// highlightBestSentence renders the sentence sharing most words with query
// in the highlight style.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
