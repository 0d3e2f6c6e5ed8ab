package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/codescan/internal/corpus"
	"github.com/dshills/codescan/internal/executor"
	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/window"
)

// Request defaults used when PromptOptions leaves them unset.
const (
	DefaultTemperature = 0.25
	DefaultTopP        = 0.4
)

const systemPromptTemplate = `You are an expert in %s software development and security analysis. Analyze the code block you are given for potential issues, including syntax errors, logic errors, semantic errors, runtime errors, memory issues, security vulnerabilities (such as SQL injection, XSS, CSRF, insecure file uploads, insecure cryptography, hardcoded credentials, insecure deserialization, and improper access control), and common malware signatures.

Provide a detailed explanation of any issues found and suggestions for improvement. Label each issue with the file name, the type of issue (e.g., [syntax error], [logic error], [security vulnerability]) and the block of code where the issue occurs.
Ignore undefined variables and types in the code block. Do not reiterate that the code block is incomplete or part of a larger body of code, just analyze the block.
Split analysis blocks into paragraphs for ease of reading. Provide a concise summary of the code block's functionality. If no issues are found, state that no issues were found. Do not provide any other output.`

// PromptOptions controls how window requests are built.
type PromptOptions struct {
	// Language is the configured language. Empty means detect it from the
	// files a window covers.
	Language    string
	Rules       *Rules
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// SystemPrompt returns the system prompt for the given language display
// names.
func SystemPrompt(languages []string, rules *Rules) string {
	lang := "multi-language"
	if len(languages) > 0 {
		lang = strings.Join(languages, "/")
	}
	sp := fmt.Sprintf(systemPromptTemplate, lang)
	if section := BuildRulesPromptSection(rules); section != "" {
		sp += "\n" + section
	}
	return sp
}

// BuildWindowPrompt constructs the user prompt for one window.
func BuildWindowPrompt(w window.Window, paths []string) string {
	var b strings.Builder
	if len(paths) > 0 {
		fmt.Fprintf(&b, "file name: %s\n", strings.Join(paths, ", "))
	}
	fmt.Fprintf(&b, "window: %d (bytes %d-%d)\n", w.Index, w.Start, w.End)
	b.WriteString("\n--- BEGIN CODE ---\n")
	b.WriteString(w.Text)
	if !strings.HasSuffix(w.Text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("--- END CODE ---\n")
	return b.String()
}

// RequestBuilder returns the executor.RequestFunc for windows over c.
func RequestBuilder(c *corpus.Corpus, opts PromptOptions) executor.RequestFunc {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = providers.DefaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	topP := opts.TopP
	if topP == 0 {
		topP = DefaultTopP
	}

	var fixed []string
	if opts.Language != "" {
		fixed = []string{corpus.DisplayName(opts.Language)}
	}

	return func(w window.Window) providers.Request {
		paths := c.PathsIn(w.Start, w.End)
		langs := fixed
		if langs == nil {
			langs = detectLanguages(paths)
		}
		return providers.Request{
			System:      SystemPrompt(langs, opts.Rules),
			Prompt:      BuildWindowPrompt(w, paths),
			Window:      w,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		}
	}
}

func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang := corpus.DetectLanguage(f)
		if lang == "" {
			continue
		}
		name := corpus.DisplayName(lang)
		if !seen[name] {
			seen[name] = true
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}
