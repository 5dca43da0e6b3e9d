package main

import (
	"context"

	"github.com/spf13/cobra"

	"topicrag/internal/config"
	"topicrag/internal/logger"
)

var (
	cfgPath string
	verbose bool
	jsonOut bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "topicrag",
	Short: "Topic-isolated retrieval over transcripts and videos",
	Long: `topicrag ingests transcripts, media files, single videos or a topic
search into an isolated namespace of a shared vector index, then answers
questions against one ingestion session at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/topicrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}

// withApp loads the config, opens the shared components, runs fn and closes
// them again.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
