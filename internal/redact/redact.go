package redact

import (
	"regexp"

	"github.com/dshills/codescan/internal/corpus"
)

// Placeholder replaces every detected secret.
const Placeholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// Generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Quoted secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// GitHub
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic, then OpenAI
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// Long hex values assigned to key-like names
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text and reports how many were found.
func Secrets(text string) (string, int) {
	n := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			n++
			return Placeholder
		})
	}
	return text, n
}

// Redactor applies secret scrubbing and a path policy to sources.
type Redactor struct {
	// Paths are glob patterns for files whose whole content is withheld.
	Paths []string
}

// Stats counts what a Redactor changed.
type Stats struct {
	Secrets int
	Files   int // files withheld by path policy
}

// Content redacts one file's text.
func (r Redactor) Content(path, text string) (string, Stats) {
	if len(r.Paths) > 0 && corpus.MatchesAny(path, r.Paths) {
		return Placeholder + " (file content redacted by path policy)\n", Stats{Files: 1}
	}
	out, n := Secrets(text)
	return out, Stats{Secrets: n}
}

// Sources returns redacted copies of sources. The input slice is not
// modified.
func (r Redactor) Sources(sources []corpus.Source) ([]corpus.Source, Stats) {
	out := make([]corpus.Source, len(sources))
	var total Stats
	for i, src := range sources {
		text, st := r.Content(src.Path, src.Text)
		out[i] = corpus.Source{Path: src.Path, Text: text}
		total.Secrets += st.Secrets
		total.Files += st.Files
	}
	return out, total
}
