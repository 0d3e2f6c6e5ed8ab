package window

import (
	"iter"
	"unicode/utf8"

	"github.com/dshills/codescan/internal/errors"
)

// Window is a contiguous slice of the corpus sent to the model in one call.
type Window struct {
	Index int
	Start int
	End   int
	Text  string
	// Overlap is the text shared with the previous window. Empty for index 0.
	Overlap string
}

// Len returns the window length in bytes.
func (w Window) Len() int { return w.End - w.Start }

// Validate checks the windowing parameters.
func Validate(maxWindowSize, overlapSize int) error {
	var errs errors.ConfigErrors
	if maxWindowSize <= 0 {
		errs = append(errs, errors.NewConfigError("window.max_size", maxWindowSize, "must be greater than 0"))
	}
	if overlapSize < 0 {
		errs = append(errs, errors.NewConfigError("window.overlap", overlapSize, "must not be negative"))
	}
	if maxWindowSize > 0 && overlapSize >= maxWindowSize {
		errs = append(errs, errors.NewConfigError("window.overlap", overlapSize, "must be less than window.max_size"))
	}
	return errs.OrNil()
}

// All returns a lazy sequence of windows over text. The sequence is finite
// and may be iterated more than once.
func All(text string, maxWindowSize, overlapSize int) (iter.Seq[Window], error) {
	if err := Validate(maxWindowSize, overlapSize); err != nil {
		return nil, err
	}
	return func(yield func(Window) bool) {
		n := len(text)
		start, prevEnd := 0, 0
		for idx := 0; ; idx++ {
			end := boundaryEnd(text, start, maxWindowSize, overlapSize)

			w := Window{Index: idx, Start: start, End: end, Text: text[start:end]}
			if idx > 0 && start < prevEnd {
				w.Overlap = text[start:prevEnd]
			}
			if !yield(w) {
				return
			}
			if end == n {
				return
			}
			start, prevEnd = nextStart(text, start, end, overlapSize), end
		}
	}, nil
}

// Split returns every window over text.
func Split(text string, maxWindowSize, overlapSize int) ([]Window, error) {
	seq, err := All(text, maxWindowSize, overlapSize)
	if err != nil {
		return nil, err
	}
	var out []Window
	for w := range seq {
		out = append(out, w)
	}
	return out, nil
}

// Count returns how many windows Split would produce.
func Count(text string, maxWindowSize, overlapSize int) (int, error) {
	seq, err := All(text, maxWindowSize, overlapSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for range seq {
		n++
	}
	return n, nil
}

func boundaryEnd(text string, start, maxWindowSize, overlapSize int) int {
	end := min(start+maxWindowSize, len(text))
	if end == len(text) {
		return end
	}
	// The snapped end must still leave room for the next start to advance.
	if snapped := runeStart(text, end); snapped > start && snapped-overlapSize > start {
		return snapped
	}
	return end
}

func nextStart(text string, start, end, overlapSize int) int {
	next := end - overlapSize
	if overlapSize == 0 {
		return next
	}
	if snapped := runeStart(text, next); snapped > start {
		return snapped
	}
	return next
}

// runeStart moves pos back to the first byte of the rune containing it.
func runeStart(text string, pos int) int {
	for i := 0; i < utf8.UTFMax && pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]); i++ {
		pos--
	}
	return pos
}
