package transcript

import (
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestBuildSegments_Empty(t *testing.T) {
	if got := BuildSegments(nil); len(got) != 0 {
		t.Fatalf("expected no segments, got %d", len(got))
	}
}

func TestBuildSegments_SingleBlock(t *testing.T) {
	words := []Word{
		{Start: ms(0), End: ms(400), Text: "hello"},
		{Start: ms(450), End: ms(900), Text: "world"},
	}
	got := BuildSegments(words)
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(got))
	}
	if got[0].Text != "hello world" {
		t.Errorf("expected joined text, got %q", got[0].Text)
	}
	if got[0].Start != ms(0) || got[0].End != ms(900) {
		t.Errorf("unexpected boundaries: %v-%v", got[0].Start, got[0].End)
	}
}

func TestBuildSegments_SplitsOnDuration(t *testing.T) {
	words := []Word{
		{Start: ms(0), End: ms(1000), Text: "a"},
		{Start: ms(1000), End: ms(4900), Text: "b"},
		// Ends more than 5s after block start, must open a new block.
		{Start: ms(5000), End: ms(5600), Text: "c"},
	}
	got := BuildSegments(words)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].Text != "a b" || got[1].Text != "c" {
		t.Errorf("unexpected split: %q / %q", got[0].Text, got[1].Text)
	}
	if got[1].Start != ms(5000) {
		t.Errorf("expected second block to start at 5s, got %v", got[1].Start)
	}
}

func TestBuildSegments_SplitsOnWordCount(t *testing.T) {
	words := make([]Word, 0, MaxBlockWords+2)
	for i := 0; i < MaxBlockWords+2; i++ {
		words = append(words, Word{Start: ms(i * 100), End: ms(i*100 + 80), Text: "w"})
	}
	got := BuildSegments(words)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
}

func TestBoundariesEqual(t *testing.T) {
	a := []Segment{{Start: ms(0), End: ms(100), Text: "x"}}
	b := []Segment{{Start: ms(0), End: ms(100), Text: "traduit"}}
	if !BoundariesEqual(a, b) {
		t.Error("expected equal boundaries regardless of text")
	}
	c := []Segment{{Start: ms(0), End: ms(101), Text: "x"}}
	if BoundariesEqual(a, c) {
		t.Error("expected boundary mismatch")
	}
	if BoundariesEqual(a, nil) {
		t.Error("expected length mismatch")
	}
}
