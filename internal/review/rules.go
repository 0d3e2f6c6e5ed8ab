package review

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules represents a rules pack loaded from --rules. The file may be YAML or
// JSON.
type Rules struct {
	Focus    []string        `yaml:"focus,omitempty" json:"focus,omitempty"`
	Ignore   []string        `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Required []RequiredCheck `yaml:"required,omitempty" json:"required,omitempty"`
}

// RequiredCheck is a policy check that should always be evaluated.
type RequiredCheck struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// LoadRules loads a rules file from disk. Returns nil Rules and nil error if
// path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	for i, req := range rules.Required {
		if strings.TrimSpace(req.Text) == "" {
			return nil, fmt.Errorf("parsing rules file: required check %d has no text", i+1)
		}
	}
	return &rules, nil
}

// BuildRulesPromptSection returns additional prompt instructions derived from
// rules.
func BuildRulesPromptSection(rules *Rules) string {
	if rules == nil {
		return ""
	}

	var b strings.Builder

	if len(rules.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize issues in these areas.\n",
			strings.Join(rules.Focus, ", "))
	}

	if len(rules.Ignore) > 0 {
		fmt.Fprintf(&b, "\nDo not report issues of these types: %s.\n",
			strings.Join(rules.Ignore, ", "))
	}

	if len(rules.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range rules.Required {
			if req.ID != "" {
				fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", req.Text)
			}
		}
	}

	return b.String()
}
