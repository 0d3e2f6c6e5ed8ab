//go:build integration

package providers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// providerSpec defines a provider to test.
type providerSpec struct {
	name   string
	model  string
	envVar string // env var that must be set (empty for ollama)
}

var providerSpecs = []providerSpec{
	{"anthropic", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	{"openai", "gpt-4o-mini", "OPENAI_API_KEY"},
	{"azure", "gpt-4o", "AZURE_OPENAI_API_KEY"},
	{"gemini", "gemini-2.0-flash", "GEMINI_API_KEY"},
	{"ollama", "llama3", ""},
}

func skipIfEnvMissing(t *testing.T, envVar string) {
	t.Helper()
	if envVar == "" {
		return
	}
	if os.Getenv(envVar) == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
}

func skipIfOllamaUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:11434/api/tags", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("skipping: ollama not reachable: %v", err)
	}
	resp.Body.Close()
}

// testCode has an obvious command injection vulnerability.
const testCode = `=== FILE: cmd/run.go ===
package cmd

import "os/exec"

func RunUserCommand(userInput string) ([]byte, error) {
	return exec.Command("bash", "-c", userInput).CombinedOutput()
}
`

func TestIntegration_Provider_Complete(t *testing.T) {
	for _, spec := range providerSpecs {
		t.Run(spec.name, func(t *testing.T) {
			t.Parallel()
			skipIfEnvMissing(t, spec.envVar)
			if spec.name == "ollama" {
				skipIfOllamaUnavailable(t)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			provider, err := New(ctx, spec.name, spec.model, Options{})
			if err != nil {
				t.Fatalf("New(%s, %s): %v", spec.name, spec.model, err)
			}

			text, err := provider.Complete(ctx, Request{
				System:    "You are an expert in go software development and security analysis.",
				Prompt:    "List any security issues in this code in one sentence:\n" + testCode,
				MaxTokens: 256,
			})
			if err != nil {
				t.Fatalf("Complete() error: %v", err)
			}
			if strings.TrimSpace(text) == "" {
				t.Error("expected non-empty analysis")
			}
		})
	}
}
