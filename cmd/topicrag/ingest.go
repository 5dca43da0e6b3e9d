package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"topicrag/internal/domain"
	"topicrag/internal/pipeline"
)

var maxVideos int

// ingestCmd groups the four input methods.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index content into a topic namespace",
}

var ingestTopicCmd = &cobra.Command{
	Use:   "topic [topic]",
	Short: "Search videos about a topic and index their transcripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, needs{videos: true}, func(ctx context.Context, a *app, p *pipeline.Pipeline) domain.IngestResult {
			return p.IngestTopicSearch(ctx, strings.Join(args, " "), resolveMaxVideos(a))
		})
	},
}

var ingestVideoCmd = &cobra.Command{
	Use:   "video [url]",
	Short: "Index one video by link or id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, needs{videos: true}, func(ctx context.Context, _ *app, p *pipeline.Pipeline) domain.IngestResult {
			return p.IngestVideoLink(ctx, args[0])
		})
	},
}

var ingestTranscriptCmd = &cobra.Command{
	Use:   "transcript [file]",
	Short: "Index a transcript file (.txt, .srt, .vtt)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runIngest(cmd, needs{}, func(ctx context.Context, _ *app, p *pipeline.Pipeline) domain.IngestResult {
			return p.IngestTranscript(ctx, pipeline.TranscriptUpload{Filename: filepath.Base(args[0]), Data: data})
		})
	},
}

var ingestMediaCmd = &cobra.Command{
	Use:   "media [file]",
	Short: "Transcribe an audio or video file and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runIngest(cmd, needs{transcriber: true}, func(ctx context.Context, _ *app, p *pipeline.Pipeline) domain.IngestResult {
			return p.IngestMedia(ctx, pipeline.MediaUpload{Filename: filepath.Base(args[0]), Data: data})
		})
	},
}

func init() {
	ingestTopicCmd.Flags().IntVarP(&maxVideos, "max-videos", "n", 0, "number of videos to fetch (default from config)")
	ingestCmd.AddCommand(ingestTopicCmd, ingestVideoCmd, ingestTranscriptCmd, ingestMediaCmd)
	rootCmd.AddCommand(ingestCmd)
}

// resolveMaxVideos prefers the --max-videos flag over the configured count.
func resolveMaxVideos(a *app) int {
	if maxVideos > 0 {
		return maxVideos
	}
	return a.cfg.YouTube.MaxVideos
}

func runIngest(cmd *cobra.Command, n needs, do func(context.Context, *app, *pipeline.Pipeline) domain.IngestResult) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.pipeline(ctx, n)
		if err != nil {
			return err
		}
		res := do(ctx, a, p)
		if err := printResult(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("ingestion failed at %s: %s", res.Stage, res.Error)
		}
		return nil
	})
}

func printResult(w io.Writer, res domain.IngestResult) error {
	if jsonOut {
		return writeJSON(w, res)
	}
	if res.Success && res.Session != nil {
		s := res.Session
		fmt.Fprintf(w, "Session:   %s\n", s.SessionID)
		fmt.Fprintf(w, "Topic:     %s\n", s.Topic)
		fmt.Fprintf(w, "Namespace: %s\n", s.Namespace)
		fmt.Fprintf(w, "Chunks:    %d (%d stored, %d skipped, strategy %s)\n",
			res.ChunkCount, res.VectorsUpserted, res.SkippedChunks, s.Strategy)
		for _, v := range s.VideoSummaries {
			fmt.Fprintf(w, "Video:     %s [%s] %d chapters\n", v.Title, v.VideoID, v.NumChapters)
		}
		if s.Summary != "" {
			fmt.Fprintf(w, "\n%s\n", s.Summary)
		}
	}
	for _, m := range res.MissingSources {
		fmt.Fprintf(w, "No transcript: %s %s\n", m.Title, m.URL)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
