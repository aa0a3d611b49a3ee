// Package transcript provides the timed-text domain model shared by the
// pipeline stages: word- and block-level caption segments and the raw
// timestamp markers returned by the transcription provider.
package transcript

import "time"

// Segment is a single timed caption block.
type Segment struct {
	// Start is the offset of the segment from the beginning of the media.
	Start time.Duration `json:"start"`
	// End is the offset at which the segment ends.
	End time.Duration `json:"end"`
	// Text is the caption text for this segment.
	Text string `json:"text"`
}

// Marker is a raw chapter marker emitted by the transcription provider.
type Marker struct {
	// Start is the offset of the marker.
	Start time.Duration `json:"start"`
	// End is the offset at which the marked section ends (zero if unknown).
	End time.Duration `json:"end"`
	// Label is the provider-assigned headline for the section.
	Label string `json:"label"`
}

// Word is a single word with provider timing, the input to block assembly.
type Word struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Block assembly limits. Tuned for readable captions.
const (
	// MaxBlockDuration caps how long a single caption block may span.
	MaxBlockDuration = 5 * time.Second
	// MaxBlockWords caps how many words a single caption block may hold.
	MaxBlockWords = 15
)

// BuildSegments groups word-level timings into caption blocks, flushing a
// block when it would exceed MaxBlockDuration or MaxBlockWords.
func BuildSegments(words []Word) []Segment {
	segments := make([]Segment, 0, len(words)/MaxBlockWords+1)

	var block []Word
	var blockStart time.Duration

	flush := func() {
		if len(block) == 0 {
			return
		}
		text := block[0].Text
		for _, w := range block[1:] {
			text += " " + w.Text
		}
		segments = append(segments, Segment{
			Start: blockStart,
			End:   block[len(block)-1].End,
			Text:  text,
		})
		block = block[:0]
	}

	for _, w := range words {
		if len(block) == 0 {
			blockStart = w.Start
			block = append(block, w)
			continue
		}
		if w.End-blockStart > MaxBlockDuration || len(block) >= MaxBlockWords {
			flush()
			blockStart = w.Start
		}
		block = append(block, w)
	}
	flush()

	return segments
}

// BoundariesEqual reports whether two segment lists have the same length and
// identical start/end times position by position. Text is not compared.
func BoundariesEqual(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Start != b[i].Start || a[i].End != b[i].End {
			return false
		}
	}
	return true
}
