package chapters

import (
	"sort"
	"time"

	"github.com/mapproject/media-pipeline/internal/transcript"
)

// DefaultMergeTolerance is how close two starts must be for raw and
// semantic markers to be treated as the same chapter.
const DefaultMergeTolerance = 5 * time.Second

// Reconcile merges the transcription provider's raw markers with the
// semantic pass into one ordered sequence:
//
//   - a raw marker and a semantic chapter whose starts fall within
//     tolerance merge into one chapter, keeping the raw timestamps and
//     preferring the semantic title when present;
//   - markers from either source with no counterpart are kept;
//   - the result is strictly increasing in start time, and overlapping
//     ranges are truncated at the midpoint of the overlap.
//
// The merge is deterministic: the same inputs always produce the same
// sequence.
func Reconcile(raw []transcript.Marker, semantic []Chapter, tolerance time.Duration) []Chapter {
	if tolerance <= 0 {
		tolerance = DefaultMergeTolerance
	}

	merged := make([]Chapter, 0, len(raw)+len(semantic))
	used := make([]bool, len(semantic))

	for _, m := range raw {
		ch := Chapter{Start: m.Start, End: m.End, Title: m.Label}
		for i, sem := range semantic {
			if used[i] {
				continue
			}
			if absDuration(sem.Start-m.Start) <= tolerance {
				used[i] = true
				if sem.Title != "" {
					ch.Title = sem.Title
				}
				break
			}
		}
		merged = append(merged, ch)
	}

	for i, sem := range semantic {
		if !used[i] {
			merged = append(merged, sem)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})

	return normalize(merged)
}

// normalize enforces strictly increasing starts and truncates overlapping
// ranges at the midpoint of the overlap.
func normalize(chapters []Chapter) []Chapter {
	out := make([]Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if len(out) == 0 {
			out = append(out, ch)
			continue
		}
		prev := &out[len(out)-1]
		if ch.Start <= prev.Start {
			// Same position reached through different sources after the
			// tolerance pass missed it; the earlier entry wins.
			continue
		}
		if prev.End > ch.Start {
			if ch.End != 0 && ch.End <= prev.End {
				// Fully contained in the previous range.
				continue
			}
			mid := (ch.Start + prev.End) / 2
			prev.End = mid
			ch.Start = mid
		}
		out = append(out, ch)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
