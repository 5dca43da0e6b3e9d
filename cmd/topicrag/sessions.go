package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage ingestion sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			list, err := a.sessions.List(ctx, listLimit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tMETHOD\tTOPIC\tCHUNKS\tCREATED")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					s.SessionID, s.InputMethod, s.Topic, s.ChunkCount, s.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session and its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			s, err := a.sessions.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Session:   %s\n", s.SessionID)
			fmt.Fprintf(w, "Method:    %s\n", s.InputMethod)
			fmt.Fprintf(w, "Topic:     %s\n", s.Topic)
			fmt.Fprintf(w, "Namespace: %s\n", s.Namespace)
			fmt.Fprintf(w, "Source:    %s\n", s.Source)
			fmt.Fprintf(w, "Chunks:    %d (strategy %s)\n", s.ChunkCount, s.Strategy)
			fmt.Fprintf(w, "Status:    %s\n", s.Status)
			if s.Summary != "" {
				fmt.Fprintf(w, "\n%s\n", s.Summary)
			}
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session record (its vectors stay in the topic namespace)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.sessions.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session: %s\n", args[0])
			return nil
		})
	},
}

var sessionsSummaryCmd = &cobra.Command{
	Use:   "summarize [session-id]",
	Short: "Regenerate a session summary from its stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.pipeline(ctx, needs{})
			if err != nil {
				return err
			}
			s, err := p.RegenerateSummary(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Summary)
			return nil
		})
	},
}

func init() {
	sessionsListCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "maximum sessions to list (0 for all)")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsSummaryCmd)
	rootCmd.AddCommand(sessionsCmd)
}
