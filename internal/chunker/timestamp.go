package chunker

import (
	"sort"

	"topicrag/internal/domain"
)

// TimestampMapper maps byte offsets in a transcript to the start time of the
// segment they fall in. The transcript is assumed to be the segment texts
// joined by single spaces.
type TimestampMapper struct {
	offsets []int
	starts  []float64
}

// NewTimestampMapper builds the offset table for segments.
func NewTimestampMapper(segments []domain.TimedSegment) *TimestampMapper {
	m := &TimestampMapper{
		offsets: make([]int, len(segments)),
		starts:  make([]float64, len(segments)),
	}
	pos := 0
	for i, seg := range segments {
		m.offsets[i] = pos
		m.starts[i] = seg.Start
		pos += len(seg.Text) + 1
	}
	return m
}

// Lookup returns the start (whole seconds) of the last segment whose offset
// is at or before pos. Positions before the first segment map to 0 and
// positions past the end map to the last segment.
func (m *TimestampMapper) Lookup(pos int) int {
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] > pos })
	if i == 0 {
		return 0
	}
	return int(m.starts[i-1])
}

// Len returns the number of segments in the table.
func (m *TimestampMapper) Len() int { return len(m.offsets) }
