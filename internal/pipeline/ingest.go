package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"topicrag/internal/chunker"
	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/transcribe"
	"topicrag/internal/youtube"
)

// TranscriptUpload is a user-supplied transcript file (.txt, .md, .srt, .vtt).
type TranscriptUpload struct {
	Filename string
	Data     []byte
}

// MediaUpload is a user-supplied audio or video file.
type MediaUpload struct {
	Filename string
	Data     []byte
}

// IngestTranscript indexes an uploaded transcript under a topic derived from
// its filename. Subtitle formats keep their cue timing.
func (p *Pipeline) IngestTranscript(ctx context.Context, up TranscriptUpload) domain.IngestResult {
	topic := TopicFromFilename(up.Filename)
	logger.Section("Reading transcript")
	tr, err := transcribe.ParseTranscript(up.Filename, up.Data)
	if err != nil {
		return fail(domain.IngestResult{Topic: topic}, domain.StageFetched, err)
	}
	return p.ingestFile(ctx, domain.InputTranscriptUpload, up.Filename, topic, tr)
}

// IngestMedia transcribes an uploaded media file and indexes the result.
func (p *Pipeline) IngestMedia(ctx context.Context, up MediaUpload) domain.IngestResult {
	topic := TopicFromFilename(up.Filename)
	if p.deps.Transcriber == nil {
		return fail(domain.IngestResult{Topic: topic}, domain.StageFetched,
			fmt.Errorf("%w: no transcriber configured", domain.ErrConfiguration))
	}
	logger.Section("Transcribing")
	tr, err := p.deps.Transcriber.Transcribe(ctx, up.Filename, up.Data)
	if err != nil {
		return fail(domain.IngestResult{Topic: topic}, domain.StageFetched, fmt.Errorf("transcribe %s: %w", up.Filename, err))
	}
	return p.ingestFile(ctx, domain.InputMediaUpload, up.Filename, topic, tr)
}

func (p *Pipeline) ingestFile(ctx context.Context, method domain.InputMethod, filename, topic string, tr domain.Transcript) domain.IngestResult {
	if n := utf8.RuneCountInString(strings.TrimSpace(tr.Text)); n < p.minTextLength {
		return fail(domain.IngestResult{Topic: topic}, domain.StageFetched, &domain.NoContentError{
			Reason: fmt.Sprintf("%s has %d characters of text, need at least %d", filename, n, p.minTextLength),
		})
	}
	src := source{
		id:   sourceID(string(method), filename),
		text: tr.Text,
		meta: domain.SourceMetadata{
			DurationSec: tr.Duration(),
			Segments:    tr.Segments,
			Attributes: map[string]any{
				AttrTitle:       topic,
				AttrFilename:    filename,
				AttrInputMethod: string(method),
			},
		},
	}
	src.meta.Attributes[AttrSourceID] = src.id
	return p.ingest(ctx, run{method: method, topic: topic, origin: filename, sources: []source{src}})
}

// IngestVideoLink indexes one video. The topic is the video title. Videos
// with chapters are chunked per chapter, long chapterless videos per time
// window, and the rest with the short-video character chunker.
func (p *Pipeline) IngestVideoLink(ctx context.Context, rawURL string) domain.IngestResult {
	res := domain.IngestResult{}
	if p.deps.Videos == nil {
		return fail(res, domain.StageFetched, fmt.Errorf("%w: no video source configured", domain.ErrConfiguration))
	}
	id, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return fail(res, domain.StageFetched, err)
	}

	logger.Section("Fetching video")
	video, err := p.deps.Videos.Video(ctx, id)
	if err != nil {
		return fail(res, domain.StageFetched, fmt.Errorf("video %s: %w", id, err))
	}
	res.Topic = videoTopic(video)
	tr, err := p.deps.Videos.Transcript(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = &domain.NoContentError{Reason: "video has no transcript", Missing: []domain.MissingSource{missing(video)}}
		}
		return fail(res, domain.StageFetched, err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return fail(res, domain.StageFetched, &domain.NoContentError{
			Reason: "video transcript is empty", Missing: []domain.MissingSource{missing(video)},
		})
	}

	src := p.videoSource(video, tr)
	return p.ingest(ctx, run{
		method:         domain.InputVideoLink,
		topic:          res.Topic,
		origin:         domain.MetaString(src.meta.Attributes, AttrURL),
		sources:        []source{src},
		videoSummaries: []domain.VideoSummary{p.videoSummary(ctx, video, src)},
	})
}

// IngestTopicSearch searches videos about topic and indexes every video that
// has a transcript into the topic's namespace. Videos without transcripts are
// reported in MissingSources.
func (p *Pipeline) IngestTopicSearch(ctx context.Context, topic string, maxVideos int) domain.IngestResult {
	topic = strings.TrimSpace(topic)
	res := domain.IngestResult{Topic: topic}
	if p.deps.Videos == nil {
		return fail(res, domain.StageFetched, fmt.Errorf("%w: no video source configured", domain.ErrConfiguration))
	}
	if topic == "" {
		return fail(res, domain.StageFetched, fmt.Errorf("%w: empty topic", domain.ErrInvalidInput))
	}
	if maxVideos <= 0 {
		maxVideos = DefaultMaxVideos
	}

	logger.Section("Searching videos")
	videos, err := p.deps.Videos.Search(ctx, topic, maxVideos)
	if err != nil {
		return fail(res, domain.StageFetched, fmt.Errorf("search %q: %w", topic, err))
	}
	if len(videos) == 0 {
		return fail(res, domain.StageFetched, &domain.NoContentError{Reason: fmt.Sprintf("no videos found for %q", topic)})
	}

	var (
		sources   []source
		summaries []domain.VideoSummary
		lacking   []domain.MissingSource
	)
	for _, v := range videos {
		tr, err := p.deps.Videos.Transcript(ctx, v.ID)
		if err == nil && strings.TrimSpace(tr.Text) == "" {
			err = domain.ErrNotFound
		}
		if err != nil {
			if ctx.Err() != nil {
				return fail(res, domain.StageFetched, ctx.Err())
			}
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("transcript for %s: %v", v.ID, err)
			}
			lacking = append(lacking, missing(v))
			continue
		}
		src := p.videoSource(v, tr)
		sources = append(sources, src)
		summaries = append(summaries, p.videoSummary(ctx, v, src))
	}
	if len(sources) == 0 {
		res.MissingSources = lacking
		return fail(res, domain.StageFetched, &domain.NoContentError{
			Reason:  fmt.Sprintf("none of %d videos for %q has a transcript", len(videos), topic),
			Missing: lacking,
		})
	}
	logger.Info("%d of %d videos have transcripts", len(sources), len(videos))

	return p.ingest(ctx, run{
		method:         domain.InputTopicSearch,
		topic:          topic,
		origin:         topic,
		sources:        sources,
		videoSummaries: summaries,
		missing:        lacking,
	})
}

func (p *Pipeline) videoSource(v domain.Video, tr domain.Transcript) source {
	duration := v.DurationSec
	if duration <= 0 {
		duration = tr.Duration()
	}
	url := v.URL
	if url == "" {
		url = youtube.WatchURL(v.ID)
	}
	meta := domain.SourceMetadata{
		Chapters:    v.Chapters,
		DurationSec: duration,
		Segments:    tr.Segments,
		Timeline:    true,
		Attributes: map[string]any{
			AttrTitle:    videoTopic(v),
			AttrURL:      url,
			AttrVideoID:  v.ID,
			AttrSourceID: v.ID,
		},
	}
	if v.Channel != "" {
		meta.Attributes[AttrChannel] = v.Channel
	}
	return source{id: v.ID, text: tr.Text, meta: meta, selector: p.videoSelector(meta)}
}

// videoSelector picks the chunking order for one video.
func (p *Pipeline) videoSelector(meta domain.SourceMetadata) *chunker.Selector {
	if len(meta.Chapters) >= 2 {
		return p.deps.Selector
	}
	if meta.DurationSec >= p.longVideoSec {
		return chunker.SelectForDuration(p.deps.Selector, meta, p.longVideoSec, p.window)
	}
	return p.shortVideo
}

func (p *Pipeline) videoSummary(ctx context.Context, v domain.Video, src source) domain.VideoSummary {
	return domain.VideoSummary{
		VideoID:     v.ID,
		Title:       videoTopic(v),
		Summary:     p.summarize(ctx, src.text),
		DurationSec: src.meta.DurationSec,
		NumChapters: len(v.Chapters),
	}
}

func videoTopic(v domain.Video) string {
	if t := strings.TrimSpace(v.Title); t != "" {
		return t
	}
	return v.ID
}

func missing(v domain.Video) domain.MissingSource {
	url := v.URL
	if url == "" {
		url = youtube.WatchURL(v.ID)
	}
	return domain.MissingSource{ID: v.ID, Title: v.Title, URL: url}
}
