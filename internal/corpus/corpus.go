package corpus

import (
	"sort"
	"strings"
)

// Source is one input file.
type Source struct {
	Path string
	Text string
}

// Span is the byte range a file occupies in the corpus, header included.
type Span struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Corpus is the immutable concatenation of all sources.
type Corpus struct {
	text  string
	spans []Span
}

// Header returns the separator line written before a file's content.
func Header(path string) string {
	return "=== FILE: " + path + " ===\n"
}

// New concatenates sources in the given order.
func New(sources []Source) *Corpus {
	var sb strings.Builder
	spans := make([]Span, 0, len(sources))
	for _, src := range sources {
		start := sb.Len()
		sb.WriteString(Header(src.Path))
		sb.WriteString(src.Text)
		if src.Text != "" && !strings.HasSuffix(src.Text, "\n") {
			sb.WriteByte('\n')
		}
		spans = append(spans, Span{Path: src.Path, Start: start, End: sb.Len()})
	}
	return &Corpus{text: sb.String(), spans: spans}
}

// FromText wraps raw text with no file structure.
func FromText(text string) *Corpus {
	return &Corpus{text: text}
}

// Text returns the full corpus text.
func (c *Corpus) Text() string { return c.text }

// Len returns the corpus length in bytes.
func (c *Corpus) Len() int { return len(c.text) }

// Files returns the span of every file in corpus order.
func (c *Corpus) Files() []Span {
	out := make([]Span, len(c.spans))
	copy(out, c.spans)
	return out
}

// Paths returns every file path in corpus order.
func (c *Corpus) Paths() []string {
	out := make([]string, len(c.spans))
	for i, s := range c.spans {
		out[i] = s.Path
	}
	return out
}

// PathsIn returns the paths whose spans intersect [start, end).
func (c *Corpus) PathsIn(start, end int) []string {
	if start >= end {
		return nil
	}
	// First span that ends after start.
	i := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].End > start })
	var out []string
	for ; i < len(c.spans) && c.spans[i].Start < end; i++ {
		out = append(out, c.spans[i].Path)
	}
	return out
}
