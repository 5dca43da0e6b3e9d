package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Manage topic namespaces",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List topic namespaces in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			topics, err := a.store.ListTopics(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), topics)
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No topics.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAMESPACE\tTOPIC\tVECTORS")
			for _, t := range topics {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Namespace, t.TopicName, t.VectorCount)
			}
			return tw.Flush()
		})
	},
}

var topicsDeleteCmd = &cobra.Command{
	Use:   "delete [topic]",
	Short: "Delete every vector of a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if !a.store.DeleteTopicData(ctx, args[0]) {
				return fmt.Errorf("could not delete topic %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted topic: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	topicsCmd.AddCommand(topicsListCmd, topicsDeleteCmd)
	rootCmd.AddCommand(topicsCmd)
}
