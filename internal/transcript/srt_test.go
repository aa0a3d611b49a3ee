package transcript

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeSRT(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2500 * time.Millisecond, Text: "first line"},
		{Start: 3 * time.Second, End: 65*time.Second + 120*time.Millisecond, Text: "second line"},
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nfirst line\n\n" +
		"2\n00:00:03,000 --> 00:01:05,120\nsecond line\n\n"
	if got := EncodeSRT(segments); got != want {
		t.Errorf("unexpected SRT output:\n%q\nwant:\n%q", got, want)
	}
}

func TestParseSRT_RoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 1200 * time.Millisecond, End: 4 * time.Second, Text: "bonjour"},
		{Start: 4 * time.Second, End: 7*time.Second + 500*time.Millisecond, Text: "le monde"},
	}
	parsed, err := ParseSRT(EncodeSRT(segments))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !BoundariesEqual(segments, parsed) {
		t.Fatalf("boundaries changed through round trip: %v vs %v", segments, parsed)
	}
	if parsed[0].Text != "bonjour" || parsed[1].Text != "le monde" {
		t.Errorf("text changed through round trip: %v", parsed)
	}
}

func TestParseSRT_CRLFAndMultilineText(t *testing.T) {
	raw := "1\r\n00:00:00,000 --> 00:00:01,000\r\ntwo\r\nlines\r\n\r\n"
	parsed, err := ParseSRT(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 1 || parsed[0].Text != "two lines" {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestParseSRT_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing time line": "1\njust text\nmore\n\n",
		"bad timestamp":     "1\n00:00 --> 00:01\ntext\n\n",
		"bad index":         "x\n00:00:00,000 --> 00:00:01,000\ntext\n\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSRT(raw); !errors.Is(err, ErrMalformedSRT) {
				t.Errorf("expected ErrMalformedSRT, got %v", err)
			}
		})
	}
}
