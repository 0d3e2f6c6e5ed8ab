package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/codescan/internal/review"
)

// TextWriter outputs the merged analysis followed by a run summary.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	ew.printf("codescan analysis (%s)\n", describeRun(report))
	if report.Inputs.Root != "" {
		ew.printf("Input: %s (%d files, %d bytes)\n", report.Inputs.Root, len(report.Inputs.Files), report.Inputs.Bytes)
	}
	ew.println(strings.Repeat("─", 60))

	text := report.Text()
	ew.printf("%s", text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		ew.println("")
	}

	ew.println(strings.Repeat("─", 60))
	s := report.Summary
	ew.printf("Windows: %d total (%d analyzed, %d failed", s.Windows, s.Analyzed, s.Failed)
	if s.Cancelled > 0 {
		ew.printf(", %d cancelled", s.Cancelled)
	}
	ew.printf(", %d retries)\n", s.Retries)
	if report.Cancelled {
		ew.println("Run was cancelled; the analysis above is partial.")
	}

	if len(report.Failures) > 0 {
		ew.println("\n[!] Windows not analyzed")
		for _, f := range report.Failures {
			ew.printf("  window %d (bytes %d-%d): %s after %d attempt(s)\n",
				f.Window, f.Start, f.End, f.Kind, f.Attempts)
			if len(f.Paths) > 0 {
				ew.printf("    files: %s\n", strings.Join(f.Paths, ", "))
			}
			if f.Error != "" {
				for _, line := range wrapText(f.Error, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	if len(report.Warnings) > 0 {
		ew.println("\n[-] Merge warnings")
		for _, wn := range report.Warnings {
			ew.printf("  windows %d/%d: %s\n", wn.Left, wn.Right, wn.Reason)
		}
	}

	ew.printf("\nCompleted in %dms (LLM: %dms)\n", report.Timing.TotalMs, report.Timing.LLMMs)

	return ew.err
}

func describeRun(report *review.Report) string {
	parts := []string{}
	if report.Provider != "" {
		p := report.Provider
		if report.Model != "" {
			p += "/" + report.Model
		}
		parts = append(parts, p)
	}
	if report.Inputs.Language != "" {
		parts = append(parts, report.Inputs.Language)
	}
	parts = append(parts, fmt.Sprintf("window %d, overlap %d", report.WindowSize, report.Overlap))
	return strings.Join(parts, ", ")
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
