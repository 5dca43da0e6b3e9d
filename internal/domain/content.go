package domain

// TimedSegment is a piece of transcribed speech with its position in the source, in seconds.
type TimedSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the segment end time in seconds.
func (s TimedSegment) End() float64 { return s.Start + s.Duration }

// ChapterMarker is a named sub-section of a video. End is nil when the
// chapter runs until the next chapter (or the end of the source).
type ChapterMarker struct {
	Title string `json:"title"`
	Start int    `json:"start"`
	End   *int   `json:"end,omitempty"`
}

// Transcript is the text of a source plus optional timing.
type Transcript struct {
	Text        string
	Segments    []TimedSegment
	DurationSec int
}

// Duration returns the explicit duration, or the end of the last segment.
func (t Transcript) Duration() int {
	if t.DurationSec > 0 {
		return t.DurationSec
	}
	if n := len(t.Segments); n > 0 {
		return int(t.Segments[n-1].End())
	}
	return 0
}

// Video describes one video returned by a VideoSource.
type Video struct {
	ID          string
	Title       string
	Channel     string
	URL         string
	Description string
	DurationSec int
	Chapters    []ChapterMarker
}

// SourceMetadata is everything a chunking strategy may inspect about a source.
// Attributes are copied onto every chunk produced from the source.
type SourceMetadata struct {
	Chapters    []ChapterMarker
	DurationSec int
	Segments    []TimedSegment
	// Timeline marks a source that plays back over time, such as a video,
	// even when its duration and segments are unknown.
	Timeline   bool
	Attributes map[string]any
}

// HasTimeline reports whether chunk offsets can be expressed as playback times.
func (m SourceMetadata) HasTimeline() bool {
	return m.Timeline || m.DurationSec > 0 || len(m.Segments) > 0
}
