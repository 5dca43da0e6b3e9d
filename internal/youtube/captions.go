package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ytdl "github.com/kkdai/youtube/v2"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/transcribe"
)

// videoClient is the part of the youtube.com player client used for
// caption tracks and audio streams.
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*ytdl.Video, error)
	GetStreamContext(ctx context.Context, video *ytdl.Video, format *ytdl.Format) (io.ReadCloser, int64, error)
}

var errRetryable = errors.New("retryable caption response")

func (s *Source) captionTranscript(ctx context.Context, video *ytdl.Video) (domain.Transcript, error) {
	track, ok := pickTrack(video.CaptionTracks, s.languages)
	if !ok {
		return domain.Transcript{}, fmt.Errorf("%w: no caption tracks", domain.ErrNotFound)
	}
	body, err := s.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return domain.Transcript{}, err
	}
	segs, err := parseTimedText(body)
	if err != nil {
		return domain.Transcript{}, err
	}
	tr := transcribe.FromSegments(segs, int(video.Duration.Seconds()))
	if strings.TrimSpace(tr.Text) == "" {
		return domain.Transcript{}, fmt.Errorf("%w: caption track %s is empty", domain.ErrNotFound, track.LanguageCode)
	}
	logger.Debug("captions for %s: %s track, %d segments", video.ID, track.LanguageCode, len(tr.Segments))
	return tr, nil
}

// pickTrack prefers the earliest listed language, and a manual track over an
// auto-generated one of the same language. Without a language match the first
// track is used.
func pickTrack(tracks []ytdl.CaptionTrack, languages []string) (ytdl.CaptionTrack, bool) {
	if len(tracks) == 0 {
		return ytdl.CaptionTrack{}, false
	}
	for _, lang := range languages {
		var auto *ytdl.CaptionTrack
		for i, t := range tracks {
			if !sameLanguage(t.LanguageCode, lang) {
				continue
			}
			if t.Kind != "asr" {
				return t, true
			}
			if auto == nil {
				auto = &tracks[i]
			}
		}
		if auto != nil {
			return *auto, true
		}
	}
	return tracks[0], true
}

func sameLanguage(code, want string) bool {
	code, want = strings.ToLower(code), strings.ToLower(want)
	return code == want || strings.HasPrefix(code, want+"-")
}

// fetchTimedText downloads a caption track, retrying throttled and server
// errors after the configured waits.
func (s *Source) fetchTimedText(ctx context.Context, baseURL string) ([]byte, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("caption url: %w", err)
	}
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()

	for attempt := 0; ; attempt++ {
		body, err := s.getTimedText(ctx, u.String())
		if err == nil || !errors.Is(err, errRetryable) || attempt >= len(s.retryWaits) {
			return body, err
		}
		logger.Warn("caption download: %v, retrying in %s", err, s.retryWaits[attempt])
		select {
		case <-time.After(s.retryWaits[attempt]):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Source) getTimedText(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download captions: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download captions: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText reads the timedtext XML format:
// <transcript><text start="1.2" dur="3.4">words</text>...</transcript>.
// Cue text arrives HTML-escaped inside the XML escaping.
func parseTimedText(data []byte) ([]domain.TimedSegment, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse captions: %w", err)
	}
	segs := make([]domain.TimedSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.Join(strings.Fields(html.UnescapeString(t.Text)), " ")
		if text == "" {
			continue
		}
		segs = append(segs, domain.TimedSegment{Text: text, Start: t.Start, Duration: t.Dur})
	}
	return segs, nil
}

// audioTranscript downloads the smallest audio-only stream and transcribes it.
func (s *Source) audioTranscript(ctx context.Context, video *ytdl.Video) (domain.Transcript, error) {
	format, ok := smallestAudio(video.Formats)
	if !ok {
		return domain.Transcript{}, fmt.Errorf("no audio stream")
	}
	stream, _, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("open audio stream: %w", err)
	}
	defer stream.Close()
	data, err := io.ReadAll(io.LimitReader(stream, transcribe.MaxUploadBytes+1))
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("download audio: %w", err)
	}
	if len(data) > transcribe.MaxUploadBytes {
		return domain.Transcript{}, fmt.Errorf("audio is larger than %d bytes", transcribe.MaxUploadBytes)
	}
	name := video.ID + audioExt(format.MimeType)
	logger.Info("transcribing %d bytes of audio for %s", len(data), video.ID)
	tr, err := s.transcriber.Transcribe(ctx, name, data)
	if err != nil {
		return domain.Transcript{}, err
	}
	if tr.DurationSec == 0 {
		tr.DurationSec = int(video.Duration.Seconds())
	}
	return tr, nil
}

func smallestAudio(formats ytdl.FormatList) (*ytdl.Format, bool) {
	var best *ytdl.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || (f.Bitrate > 0 && f.Bitrate < best.Bitrate) {
			best = f
		}
	}
	return best, best != nil
}

func audioExt(mimeType string) string {
	if strings.HasPrefix(mimeType, "audio/webm") {
		return ".webm"
	}
	return ".m4a"
}
