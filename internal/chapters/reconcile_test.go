package chapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapproject/media-pipeline/internal/transcript"
)

func sec(n int) time.Duration { return time.Duration(n) * time.Second }

func TestReconcile_MergeWithinTolerance(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(60), Label: "Intro"},
		{Start: sec(60), End: sec(120), Label: "Part one"},
	}
	semantic := []Chapter{
		// Within 5s of the first raw marker: merges, semantic title wins.
		{Start: sec(3), End: sec(58), Title: "Welcome and overview"},
	}

	got := Reconcile(raw, semantic, DefaultMergeTolerance)
	require.Len(t, got, 2)
	assert.Equal(t, "Welcome and overview", got[0].Title)
	// Raw timestamps are authoritative for merged chapters.
	assert.Equal(t, sec(0), got[0].Start)
	assert.Equal(t, sec(60), got[0].End)
	assert.Equal(t, "Part one", got[1].Title)
}

func TestReconcile_KeepsNonOverlappingFromBothSources(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(60), Label: "Intro"},
	}
	semantic := []Chapter{
		{Start: sec(200), End: sec(260), Title: "Deep dive"},
	}

	got := Reconcile(raw, semantic, DefaultMergeTolerance)
	require.Len(t, got, 2)
	assert.Equal(t, "Intro", got[0].Title)
	assert.Equal(t, "Deep dive", got[1].Title)
}

func TestReconcile_StrictlyIncreasingStarts(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(100), End: sec(200), Label: "B"},
		{Start: sec(0), End: sec(90), Label: "A"},
	}
	semantic := []Chapter{
		{Start: sec(300), End: sec(400), Title: "C"},
		{Start: sec(150), End: sec(250), Title: "merged with B"},
	}

	got := Reconcile(raw, semantic, DefaultMergeTolerance)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Start, got[i-1].Start,
			"starts must be strictly increasing at %d: %+v", i, got)
	}
}

func TestReconcile_TruncatesOverlapAtMidpoint(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(100), Label: "A"},
	}
	semantic := []Chapter{
		{Start: sec(80), End: sec(180), Title: "B"},
	}

	got := Reconcile(raw, semantic, sec(5))
	require.Len(t, got, 2)
	// Overlap [80,100] is split at 90.
	assert.Equal(t, sec(90), got[0].End)
	assert.Equal(t, sec(90), got[1].Start)
	assert.Equal(t, sec(180), got[1].End)
}

func TestReconcile_NoOverlappingRanges(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(120), Label: "A"},
		{Start: sec(30), End: sec(140), Label: "B"},
		{Start: sec(70), End: sec(200), Label: "C"},
	}

	got := Reconcile(raw, nil, sec(5))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Start, got[i-1].End,
			"ranges must not overlap at %d: %+v", i, got)
	}
}

func TestReconcile_DropsContainedChapter(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(100), Label: "A"},
	}
	semantic := []Chapter{
		{Start: sec(40), End: sec(60), Title: "inside A"},
	}

	got := Reconcile(raw, semantic, sec(5))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	assert.Empty(t, Reconcile(nil, nil, sec(5)))

	onlySemantic := Reconcile(nil, []Chapter{{Start: sec(10), Title: "solo"}}, sec(5))
	require.Len(t, onlySemantic, 1)
	assert.Equal(t, "solo", onlySemantic[0].Title)
}

func TestReconcile_RawTitleKeptWhenSemanticEmpty(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(50), Label: "Provider headline"},
	}
	semantic := []Chapter{
		{Start: sec(1), End: sec(49), Title: ""},
	}

	got := Reconcile(raw, semantic, sec(5))
	require.Len(t, got, 1)
	assert.Equal(t, "Provider headline", got[0].Title)
}

func TestReconcile_Deterministic(t *testing.T) {
	raw := []transcript.Marker{
		{Start: sec(0), End: sec(60), Label: "A"},
		{Start: sec(55), End: sec(130), Label: "B"},
	}
	semantic := []Chapter{
		{Start: sec(2), End: sec(58), Title: "a'"},
		{Start: sec(120), End: sec(240), Title: "c"},
	}

	first := Reconcile(raw, semantic, sec(5))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Reconcile(raw, semantic, sec(5)))
	}
}
