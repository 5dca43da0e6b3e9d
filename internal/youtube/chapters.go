package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"topicrag/internal/domain"
)

var (
	chapterLine  = regexp.MustCompile(`^[-–—•*#▪►\s]*\(?(\d{1,2}):(\d{2})(?::(\d{2}))?\)?\s+(.+?)\s*$`)
	titlePrefix  = regexp.MustCompile(`^[-–—•*#\d.)\]:|]+\s*`)
	isoDuration  = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
	videoIDInURL = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([\w-]{6,})`),
		regexp.MustCompile(`youtu\.be/([\w-]{6,})`),
		regexp.MustCompile(`youtube\.com/(?:embed|shorts|live|v)/([\w-]{6,})`),
	}
	bareVideoID = regexp.MustCompile(`^[\w-]{11}$`)
)

// ParseChapters reads chapter markers from a video description, one
// "m:ss Title" or "h:mm:ss Title" per line. Fewer than two markers means the
// description has no chapters. Each chapter ends where the next starts; the
// last ends at durationSec when it is known.
func ParseChapters(description string, durationSec int) []domain.ChapterMarker {
	var chapters []domain.ChapterMarker
	for _, line := range strings.Split(description, "\n") {
		m := chapterLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		start := a*60 + b
		if m[3] != "" {
			c, _ := strconv.Atoi(m[3])
			start = a*3600 + b*60 + c
		}
		title := strings.TrimSpace(m[4])
		if cleaned := titlePrefix.ReplaceAllString(title, ""); cleaned != "" {
			title = cleaned
		}
		chapters = append(chapters, domain.ChapterMarker{Title: title, Start: start})
	}
	if len(chapters) < 2 {
		return nil
	}
	for i := 0; i < len(chapters)-1; i++ {
		end := chapters[i+1].Start
		chapters[i].End = &end
	}
	if durationSec > 0 {
		end := durationSec
		chapters[len(chapters)-1].End = &end
	}
	return chapters
}

// ParseISODuration converts an ISO 8601 duration such as PT1H2M30S to
// seconds. Unparseable input yields 0.
func ParseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	mult := []int{86400, 3600, 60, 1}
	total := 0
	for i, unit := range mult {
		if v := m[i+1]; v != "" {
			n, _ := strconv.Atoi(v)
			total += n * unit
		}
	}
	return total
}

// ExtractVideoID returns the video id from a watch, short, embed or
// youtu.be URL, or from a bare 11-character id.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, re := range videoIDInURL {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1], nil
		}
	}
	if bareVideoID.MatchString(raw) {
		return raw, nil
	}
	return "", fmt.Errorf("%w: no video id in %q", domain.ErrInvalidInput, raw)
}

// WatchURL returns the canonical URL of a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// FormatTimestamp renders seconds as m:ss, or h:mm:ss from one hour on.
func FormatTimestamp(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
