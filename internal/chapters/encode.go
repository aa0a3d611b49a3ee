package chapters

import (
	"encoding/json"
	"time"
)

// EncodeJSON renders the chapter sequence as the published artifact: a
// JSON array with start/end in seconds, matching the shape clients
// consume alongside the SRT captions.
func EncodeJSON(chs []Chapter) ([]byte, error) {
	wire := make([]wireChapter, len(chs))
	for i, c := range chs {
		wire[i] = wireChapter{
			Start: c.Start.Seconds(),
			End:   c.End.Seconds(),
			Title: c.Title,
		}
	}
	return json.MarshalIndent(wire, "", "  ")
}

// DecodeJSON parses an artifact produced by EncodeJSON.
func DecodeJSON(data []byte) ([]Chapter, error) {
	var wire []wireChapter
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	out := make([]Chapter, len(wire))
	for i, c := range wire {
		out[i] = Chapter{
			Start: time.Duration(c.Start * float64(time.Second)),
			End:   time.Duration(c.End * float64(time.Second)),
			Title: c.Title,
		}
	}
	return out, nil
}
