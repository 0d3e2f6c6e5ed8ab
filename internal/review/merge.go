package review

import (
	"fmt"

	"github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/executor"
)

// Merge assembles per-window results into a report.
//
// Every index in [0, windowCount) must have a result. Adjacent analyses are
// deduplicated: when the end of one repeats the start of the next by at least
// overlapSize bytes, the repeated text is kept only in the later segment.
// Repetitive text can repeat by more than the windows share, so the trimmed
// length is the window overlap when that matches, else the shortest match of
// at least overlapSize bytes. Shorter matches are left alone and recorded as
// warnings. An overlapSize of zero disables deduplication.
func Merge(results map[int]executor.Result, windowCount, overlapSize int) (*Report, error) {
	var missing []int
	for i := 0; i < windowCount; i++ {
		if _, ok := results[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return nil, &errors.IncompleteResultsError{Missing: missing}
	}
	for idx := range results {
		if idx < 0 || idx >= windowCount {
			return nil, fmt.Errorf("result for window %d outside [0, %d)", idx, windowCount)
		}
	}

	segments := make([]Segment, windowCount)
	var failures []Failure
	for i := 0; i < windowCount; i++ {
		res := results[i]
		seg := Segment{
			Window:   i,
			Start:    res.Window.Start,
			End:      res.Window.End,
			Status:   res.Status,
			Attempts: res.Attempts,
		}
		if res.Succeeded() {
			seg.Text = res.Text
		} else {
			seg.Text = Placeholder(res)
			f := Failure{
				Window:   i,
				Kind:     res.Kind,
				Attempts: res.Attempts,
				Start:    res.Window.Start,
				End:      res.Window.End,
			}
			if res.Err != nil {
				f.Error = res.Err.Error()
			}
			failures = append(failures, f)
		}
		segments[i] = seg
	}

	var warnings []Warning
	if overlapSize > 0 {
		for i := 0; i+1 < windowCount; i++ {
			left, right := results[i], results[i+1]
			if !left.Succeeded() || !right.Succeeded() {
				continue
			}
			longest, n := repeatedOverlap(left.Text, right.Text, overlapSize, len(right.Window.Overlap))
			if n == 0 {
				warnings = append(warnings, Warning{
					Left:   i,
					Right:  i + 1,
					Reason: fmt.Sprintf("no repeated overlap found (longest match %d bytes, need %d)", longest, overlapSize),
				})
				continue
			}
			segments[i].Text = left.Text[:len(left.Text)-n]
			segments[i].Trimmed = n
		}
	}

	return &Report{
		Segments: segments,
		Failures: failures,
		Warnings: warnings,
		Summary:  ComputeSummary(segments, failures, warnings),
	}, nil
}

// Placeholder is the marker text that stands in for a window that was not
// analyzed.
func Placeholder(res executor.Result) string {
	return fmt.Sprintf("[codescan: window %d (bytes %d-%d) not analyzed: %s after %d attempt(s)]\n",
		res.Window.Index, res.Window.Start, res.Window.End, res.Kind, res.Attempts)
}

// repeatedOverlap picks how much of a to trim because b repeats it. It
// returns the longest suffix of a that is a prefix of b, and the chosen trim:
// shared if that length is a match, otherwise the shortest match of at least
// minLen bytes, or 0 if there is none.
func repeatedOverlap(a, b string, minLen, shared int) (longest, trim int) {
	if a == "" || b == "" {
		return 0, 0
	}
	pi := prefixFunction(b)
	longest = borderState(a, b, pi)
	// Every shorter match is reached by following the failure links.
	for q := longest; q > 0; q = pi[q-1] {
		if q < minLen {
			break
		}
		if q == shared {
			return longest, q
		}
		trim = q
	}
	return longest, trim
}

// overlapLen returns the length of the longest suffix of a that is also a
// prefix of b.
func overlapLen(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return borderState(a, b, prefixFunction(b))
}

// borderState runs KMP matching of b over a and returns the matched prefix
// length at the end of a.
func borderState(a, b string, pi []int) int {
	q := 0
	for i := 0; i < len(a); i++ {
		if q == len(b) {
			q = pi[q-1]
		}
		for q > 0 && a[i] != b[q] {
			q = pi[q-1]
		}
		if a[i] == b[q] {
			q++
		}
	}
	return q
}

// prefixFunction is the KMP failure table: pi[i] is the length of the
// longest proper prefix of s[:i+1] that is also its suffix.
func prefixFunction(s string) []int {
	pi := make([]int, len(s))
	for i := 1; i < len(s); i++ {
		k := pi[i-1]
		for k > 0 && s[i] != s[k] {
			k = pi[k-1]
		}
		if s[i] == s[k] {
			k++
		}
		pi[i] = k
	}
	return pi
}
