package review

import (
	"strings"

	"github.com/dshills/codescan/internal/executor"
	"github.com/dshills/codescan/internal/providers"
)

// Segment is the analysis text contributed by one window.
type Segment struct {
	Window   int             `json:"window" yaml:"window"`
	Start    int             `json:"start" yaml:"start"`
	End      int             `json:"end" yaml:"end"`
	Paths    []string        `json:"paths,omitempty" yaml:"paths,omitempty"`
	Status   executor.Status `json:"status" yaml:"status"`
	Attempts int             `json:"attempts" yaml:"attempts"`
	Text     string          `json:"text" yaml:"text"`
	// Trimmed is how many trailing bytes were dropped because the next
	// window's analysis repeats them.
	Trimmed int `json:"trimmed,omitempty" yaml:"trimmed,omitempty"`
}

// Failure describes a window that could not be analyzed.
type Failure struct {
	Window   int            `json:"window" yaml:"window"`
	Kind     providers.Kind `json:"kind" yaml:"kind"`
	Attempts int            `json:"attempts" yaml:"attempts"`
	Start    int            `json:"start" yaml:"start"`
	End      int            `json:"end" yaml:"end"`
	Paths    []string       `json:"paths,omitempty" yaml:"paths,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Warning is a non-fatal merge problem between two adjacent windows.
type Warning struct {
	Left   int    `json:"left" yaml:"left"`
	Right  int    `json:"right" yaml:"right"`
	Reason string `json:"reason" yaml:"reason"`
}

// InputInfo describes what was analyzed.
type InputInfo struct {
	Root     string   `json:"root,omitempty" yaml:"root,omitempty"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
	Files    []string `json:"files,omitempty" yaml:"files,omitempty"`
	Bytes    int      `json:"bytes" yaml:"bytes"`
}

// Summary provides an overview of the run.
type Summary struct {
	Windows   int `json:"windows" yaml:"windows"`
	Analyzed  int `json:"analyzed" yaml:"analyzed"`
	Failed    int `json:"failed" yaml:"failed"`
	Cancelled int `json:"cancelled" yaml:"cancelled"`
	Retries   int `json:"retries" yaml:"retries"`
	Warnings  int `json:"warnings" yaml:"warnings"`
}

// Timing contains performance metrics.
type Timing struct {
	LLMMs   int64 `json:"llmMs" yaml:"llmMs"`
	TotalMs int64 `json:"totalMs" yaml:"totalMs"`
}

// Report is the top-level output structure.
type Report struct {
	Tool       string    `json:"tool" yaml:"tool"`
	Version    string    `json:"version" yaml:"version"`
	RunID      string    `json:"runId" yaml:"runId"`
	Provider   string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model      string    `json:"model,omitempty" yaml:"model,omitempty"`
	Inputs     InputInfo `json:"inputs" yaml:"inputs"`
	WindowSize int       `json:"windowSize" yaml:"windowSize"`
	Overlap    int       `json:"overlap" yaml:"overlap"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	Segments   []Segment `json:"segments" yaml:"segments"`
	Failures   []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings   []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Cancelled is set when the run was interrupted and some windows were
	// never attempted or were cut short.
	Cancelled bool   `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Timing    Timing `json:"timing" yaml:"timing"`
}

// Text returns the merged analysis: every segment in window order.
func (r *Report) Text() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// HasFailures reports whether any window was not analyzed.
func (r *Report) HasFailures() bool { return len(r.Failures) > 0 }

// ComputeSummary calculates the summary from segments, failures and warnings.
func ComputeSummary(segments []Segment, failures []Failure, warnings []Warning) Summary {
	s := Summary{Windows: len(segments), Warnings: len(warnings)}
	for _, seg := range segments {
		if seg.Status == executor.StatusSucceeded {
			s.Analyzed++
		}
		if seg.Attempts > 1 {
			s.Retries += seg.Attempts - 1
		}
	}
	for _, f := range failures {
		s.Failed++
		if f.Kind == providers.Cancelled {
			s.Cancelled++
		}
	}
	return s
}
