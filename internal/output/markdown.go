package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/codescan/internal/review"
)

// MarkdownWriter outputs the analysis as a markdown document.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	s := report.Summary

	ew.printf("## codescan analysis\n\n")
	ew.printf("_%s_\n\n", describeRun(report))

	ew.printf("| Windows | Count |\n")
	ew.printf("|---------|-------|\n")
	ew.printf("| Analyzed | %d |\n", s.Analyzed)
	ew.printf("| Failed | %d |\n", s.Failed)
	if s.Cancelled > 0 {
		ew.printf("| Cancelled | %d |\n", s.Cancelled)
	}
	ew.printf("| Retries | %d |\n", s.Retries)
	ew.printf("| **Total** | **%d** |\n\n", s.Windows)

	if report.Cancelled {
		ew.printf("> :warning: The run was cancelled; the analysis below is partial.\n\n")
	}

	ew.printf("### Analysis\n\n")
	text := report.Text()
	if strings.TrimSpace(text) == "" {
		ew.printf("No analysis was produced.\n\n")
	} else {
		ew.printf("%s", text)
		if !strings.HasSuffix(text, "\n") {
			ew.printf("\n")
		}
		ew.printf("\n")
	}

	if len(report.Failures) > 0 {
		ew.printf("<details>\n<summary>:red_circle: Windows not analyzed (%d)</summary>\n\n", len(report.Failures))
		ew.printf("| Window | Bytes | Kind | Attempts | Files |\n")
		ew.printf("|--------|-------|------|----------|-------|\n")
		for _, f := range report.Failures {
			ew.printf("| %d | %d-%d | %s | %d | %s |\n",
				f.Window, f.Start, f.End, f.Kind, f.Attempts, mdPaths(f.Paths))
		}
		ew.printf("\n</details>\n\n")
	}

	if len(report.Warnings) > 0 {
		ew.printf("<details>\n<summary>:yellow_circle: Merge warnings (%d)</summary>\n\n", len(report.Warnings))
		for _, wn := range report.Warnings {
			ew.printf("- windows %d/%d: %s\n", wn.Left, wn.Right, wn.Reason)
		}
		ew.printf("\n</details>\n\n")
	}

	ew.printf("*Analyzed in %dms (LLM: %dms)*\n", report.Timing.TotalMs, report.Timing.LLMMs)

	return ew.err
}

func mdPaths(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = fmt.Sprintf("`%s`", p)
	}
	return strings.Join(quoted, ", ")
}
