// Package youtube finds videos through the YouTube Data API and gets their
// transcripts from a local caption directory, the video's caption tracks, or
// by transcribing the downloaded audio.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ytdl "github.com/kkdai/youtube/v2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/transcribe"
)

// Config configures a Source.
type Config struct {
	APIKeyEnv string
	// TranscriptDir holds caption files named <video id>[.<lang>].{vtt,srt,txt}.
	TranscriptDir string
	// Endpoint overrides the API base URL.
	Endpoint string
	// Offline disables caption and audio downloads; only TranscriptDir is read.
	Offline bool
	// Languages orders the preferred caption languages. Defaults to English.
	Languages []string
	// Transcriber transcribes downloaded audio for videos without captions.
	// Nil disables the audio fallback.
	Transcriber domain.Transcriber
}

// Source implements domain.VideoSource.
type Source struct {
	svc           *yt.Service
	transcriptDir string

	client      videoClient
	http        *http.Client
	languages   []string
	transcriber domain.Transcriber
	retryWaits  []time.Duration
}

// NewSource creates a YouTube video source.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	opts := []option.ClientOption{option.WithAPIKey(key)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	s := &Source{
		svc:           svc,
		transcriptDir: cfg.TranscriptDir,
		http:          &http.Client{Timeout: 30 * time.Second},
		languages:     cfg.Languages,
		retryWaits:    []time.Duration{2 * time.Second, 5 * time.Second},
	}
	if len(s.languages) == 0 {
		s.languages = []string{"en"}
	}
	if !cfg.Offline {
		s.client = &ytdl.Client{HTTPClient: s.http}
		s.transcriber = cfg.Transcriber
	}
	return s, nil
}

// Search returns up to maxResults videos for topic, in relevance order.
func (s *Source) Search(ctx context.Context, topic string, maxResults int) ([]domain.Video, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	resp, err := s.svc.Search.List([]string{"id"}).
		Q(topic).
		Type("video").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", topic, err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	videos, err := s.videos(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	out := make([]domain.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Video returns the metadata of one video, including description chapters.
func (s *Source) Video(ctx context.Context, videoID string) (domain.Video, error) {
	videos, err := s.videos(ctx, []string{videoID})
	if err != nil {
		return domain.Video{}, err
	}
	if len(videos) == 0 {
		return domain.Video{}, fmt.Errorf("%w: video %s", domain.ErrNotFound, videoID)
	}
	return videos[0], nil
}

func (s *Source) videos(ctx context.Context, ids []string) ([]domain.Video, error) {
	resp, err := s.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube videos %s: %w", strings.Join(ids, ","), err)
	}
	out := make([]domain.Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := domain.Video{ID: item.Id, URL: WatchURL(item.Id)}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Channel = item.Snippet.ChannelTitle
			v.Description = item.Snippet.Description
		}
		if item.ContentDetails != nil {
			v.DurationSec = ParseISODuration(item.ContentDetails.Duration)
		}
		v.Chapters = ParseChapters(v.Description, v.DurationSec)
		out = append(out, v)
	}
	return out, nil
}

// Transcript returns the transcript of videoID. A local caption file wins,
// then the video's caption tracks, then Whisper over the downloaded audio.
// When every source comes up empty the error wraps domain.ErrNotFound.
func (s *Source) Transcript(ctx context.Context, videoID string) (domain.Transcript, error) {
	tr, err := s.localTranscript(videoID)
	if err == nil || !errors.Is(err, domain.ErrNotFound) || s.client == nil {
		return tr, err
	}
	logger.Debug("no local transcript for %s: %v", videoID, err)

	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Transcript{}, ctx.Err()
		}
		return domain.Transcript{}, fmt.Errorf("%w: video %s: %v", domain.ErrNotFound, videoID, err)
	}
	tr, err = s.captionTranscript(ctx, video)
	if err == nil {
		return tr, nil
	}
	if ctx.Err() != nil {
		return domain.Transcript{}, ctx.Err()
	}
	logger.Debug("captions for %s: %v", videoID, err)
	if s.transcriber == nil {
		return domain.Transcript{}, fmt.Errorf("%w: video %s has no captions", domain.ErrNotFound, videoID)
	}

	tr, err = s.audioTranscript(ctx, video)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Transcript{}, ctx.Err()
		}
		logger.Warn("audio transcription for %s failed: %v", videoID, err)
		return domain.Transcript{}, fmt.Errorf("%w: video %s has no captions and audio transcription failed", domain.ErrNotFound, videoID)
	}
	return tr, nil
}

func (s *Source) localTranscript(videoID string) (domain.Transcript, error) {
	if s.transcriptDir == "" {
		return domain.Transcript{}, fmt.Errorf("%w: no transcript directory configured", domain.ErrNotFound)
	}
	path, err := findCaptionFile(s.transcriptDir, videoID)
	if err != nil {
		return domain.Transcript{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("read transcript %s: %w", path, err)
	}
	logger.Debug("transcript for %s from %s", videoID, path)
	return transcribe.ParseTranscript(path, data)
}

var captionRank = map[string]int{".vtt": 0, ".srt": 1, ".txt": 2}

func findCaptionFile(dir, videoID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: transcript directory %s", domain.ErrNotFound, dir)
		}
		return "", err
	}
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if _, ok := captionRank[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base == videoID || strings.HasPrefix(base, videoID+".") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no transcript for video %s", domain.ErrNotFound, videoID)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri := captionRank[strings.ToLower(filepath.Ext(candidates[i]))]
		rj := captionRank[strings.ToLower(filepath.Ext(candidates[j]))]
		if ri != rj {
			return ri < rj
		}
		return candidates[i] < candidates[j]
	})
	return filepath.Join(dir, candidates[0]), nil
}
