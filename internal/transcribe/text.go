// Package transcribe turns uploaded files into transcripts: subtitle and
// plain-text files are parsed locally, audio and video go to Whisper.
package transcribe

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"topicrag/internal/domain"
)

var (
	transcriptExts = map[string]bool{".txt": true, ".md": true, ".srt": true, ".vtt": true}
	mediaExts      = map[string]bool{
		".mp3": true, ".mp4": true, ".m4a": true, ".wav": true, ".webm": true,
		".mpeg": true, ".mpga": true, ".ogg": true, ".flac": true,
	}
	cueTag = regexp.MustCompile(`<[^>]*>`)
)

// IsTranscriptFile reports whether filename is a supported text transcript.
func IsTranscriptFile(filename string) bool {
	return transcriptExts[strings.ToLower(filepath.Ext(filename))]
}

// IsMediaFile reports whether filename is a supported audio or video file.
func IsMediaFile(filename string) bool {
	return mediaExts[strings.ToLower(filepath.Ext(filename))]
}

// ParseTranscript reads an uploaded transcript. SRT and WebVTT files yield
// timed segments and a text made of the segment texts joined by spaces;
// anything else is taken as plain text.
func ParseTranscript(filename string, data []byte) (domain.Transcript, error) {
	if !utf8.Valid(data) {
		return domain.Transcript{}, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrInvalidInput, filename)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".srt", ".vtt":
		segs, err := parseCues(string(data))
		if err != nil {
			return domain.Transcript{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, filename, err)
		}
		return FromSegments(segs, 0), nil
	}
	return domain.Transcript{Text: strings.TrimSpace(string(data))}, nil
}

// FromSegments builds a transcript whose text is the trimmed segment texts
// joined by single spaces, the layout chunker.TimestampMapper expects.
func FromSegments(segs []domain.TimedSegment, durationSec int) domain.Transcript {
	kept := make([]domain.TimedSegment, 0, len(segs))
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		kept = append(kept, s)
		parts = append(parts, s.Text)
	}
	return domain.Transcript{Text: strings.Join(parts, " "), Segments: kept, DurationSec: durationSec}
}

// parseCues reads SRT or WebVTT cue blocks. Blocks without a timing line
// (headers, NOTE and STYLE blocks, cue numbers on their own) are ignored.
func parseCues(text string) ([]domain.TimedSegment, error) {
	var (
		segs  []domain.TimedSegment
		cur   *domain.TimedSegment
		lines []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = cueTag.ReplaceAllString(strings.Join(lines, " "), "")
			segs = append(segs, *cur)
		}
		cur, lines = nil, nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.Contains(line, "-->"):
			flush()
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, err
			}
			cur = &domain.TimedSegment{Start: start, Duration: max(end-start, 0)}
		case cur != nil:
			lines = append(lines, line)
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("no cues found")
	}
	return segs, nil
}

func parseTiming(line string) (float64, float64, error) {
	left, right, _ := strings.Cut(line, "-->")
	// WebVTT cue settings follow the end time
	if f := strings.Fields(right); len(f) > 0 {
		right = f[0]
	}
	start, err := parseClock(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseClock accepts hh:mm:ss,mmm (SRT) and [hh:]mm:ss.mmm (WebVTT).
func parseClock(s string) (float64, error) {
	parts := strings.Split(strings.Replace(s, ",", ".", 1), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	total := 0.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
		if i < len(parts)-1 {
			total = (total + v) * 60
		} else {
			total += v
		}
	}
	return total, nil
}
