package transcript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedSRT is returned when SRT content cannot be parsed.
var ErrMalformedSRT = errors.New("transcript: malformed SRT")

// EncodeSRT renders segments as an SRT document. Indexes are 1-based and
// assigned in order.
func EncodeSRT(segments []Segment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(s.Start), formatTimestamp(s.End))
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// ParseSRT parses an SRT document back into segments. Block indexes are
// discarded; ordering follows document order.
func ParseSRT(content string) ([]Segment, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	segments := make([]Segment, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			return nil, fmt.Errorf("%w: block %q", ErrMalformedSRT, block)
		}
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
			return nil, fmt.Errorf("%w: bad index %q", ErrMalformedSRT, lines[0])
		}
		start, end, err := parseTimeLine(lines[1])
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], " "),
		})
	}
	return segments, nil
}

func parseTimeLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad time line %q", ErrMalformedSRT, line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// formatTimestamp renders a duration as the SRT HH:MM:SS,mmm form.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func parseTimestamp(ts string) (time.Duration, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(ts, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrMalformedSRT, ts)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
