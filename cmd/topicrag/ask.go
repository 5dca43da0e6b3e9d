package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"topicrag/internal/pipeline"
	"topicrag/internal/tui"
)

var topK int

var askCmd = &cobra.Command{
	Use:   "ask [session-id] [question]",
	Short: "Answer a question from one session's content",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			qa, err := a.qa()
			if err != nil {
				return err
			}
			ans, err := qa.Ask(ctx, args[0], strings.Join(args[1:], " "), resolveTopK(a))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), ans)
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		})
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui [session-id]",
	Short: "Ask questions about a session interactively",
	Long: `Launch an interactive question and answer view over one session.

Controls:
  Enter   - Ask
  ↑/↓     - Cycle through answer sources
  Ctrl+C  - Quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.sessions.Get(ctx, args[0])
			if err != nil {
				return err
			}
			qa, err := a.qa()
			if err != nil {
				return err
			}
			m := tui.New(qa, sess, resolveTopK(a))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		})
	},
}

func init() {
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	tuiCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	rootCmd.AddCommand(askCmd, tuiCmd)
}

func resolveTopK(a *app) int {
	if topK > 0 {
		return topK
	}
	return a.cfg.Pipeline.TopK
}

func printAnswer(w io.Writer, ans pipeline.Answer) {
	fmt.Fprintln(w, ans.Answer)
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range ans.Sources {
		line := fmt.Sprintf("  %d. %s", i+1, s.Title)
		if s.ChapterTitle != "" {
			line += " / " + s.ChapterTitle
		}
		if s.HasTimestamp {
			line += " [" + s.Clock() + "]"
		}
		if link := s.Link(); link != "" {
			line += " " + link
		}
		fmt.Fprintf(w, "%s (score %.3f)\n", line, s.Score)
	}
}
