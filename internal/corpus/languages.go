package corpus

import (
	"path/filepath"
	"sort"
	"strings"
)

// languageExtensions maps a language name to the file extensions analyzed
// for it.
var languageExtensions = map[string][]string{
	"python":     {".py"},
	"javascript": {".js", ".jsx", ".mjs"},
	"java":       {".java"},
	"typescript": {".ts", ".tsx"},
	"csharp":     {".cs"},
	"rust":       {".rs"},
	"go":         {".go"},
	"c":          {".c", ".h"},
	"cpp":        {".cpp", ".cc", ".cxx", ".hpp", ".hh"},
	"ruby":       {".rb"},
	"php":        {".php"},
	"kotlin":     {".kt", ".kts"},
	"swift":      {".swift"},
	"shell":      {".sh", ".bash"},
}

var displayNames = map[string]string{
	"python":     "Python",
	"javascript": "JavaScript",
	"java":       "Java",
	"typescript": "TypeScript",
	"csharp":     "C#",
	"rust":       "Rust",
	"go":         "Go",
	"c":          "C",
	"cpp":        "C++",
	"ruby":       "Ruby",
	"php":        "PHP",
	"kotlin":     "Kotlin",
	"swift":      "Swift",
	"shell":      "Shell",
}

var languageAliases = map[string]string{
	"js":      "javascript",
	"ts":      "typescript",
	"c#":      "csharp",
	"cs":      "csharp",
	"golang":  "go",
	"py":      "python",
	"c++":     "cpp",
	"sh":      "shell",
	"bash":    "shell",
	"rb":      "ruby",
	"kt":      "kotlin",
	"rs":      "rust",
	"node":    "javascript",
	"nodejs":  "javascript",
	"python3": "python",
}

// NormalizeLanguage returns the canonical language name and whether it is
// known.
func NormalizeLanguage(lang string) (string, bool) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if canonical, ok := languageAliases[lang]; ok {
		lang = canonical
	}
	_, ok := languageExtensions[lang]
	return lang, ok
}

// DisplayName returns the human readable name of a language, or lang itself
// if it is unknown.
func DisplayName(lang string) string {
	canonical, _ := NormalizeLanguage(lang)
	if name, ok := displayNames[canonical]; ok {
		return name
	}
	return lang
}

// Extensions returns the extensions for a language, or nil if unknown.
func Extensions(lang string) []string {
	canonical, ok := NormalizeLanguage(lang)
	if !ok {
		return nil
	}
	return append([]string(nil), languageExtensions[canonical]...)
}

// Languages returns every supported language name, sorted.
func Languages() []string {
	out := make([]string, 0, len(languageExtensions))
	for lang := range languageExtensions {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// DetectLanguage guesses the language of a file from its extension.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for lang, exts := range languageExtensions {
		for _, e := range exts {
			if e == ext {
				return lang
			}
		}
	}
	return ""
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
