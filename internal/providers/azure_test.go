package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAzure_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/analyzer/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != defaultAzureAPIVersion {
			t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "azure-key" {
			t.Error("Missing or wrong api-key header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["model"]; ok {
			t.Error("azure requests should not carry a model")
		}
		json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Content: "summary"}}}})
	}))
	defer server.Close()

	a := &Azure{apiKey: "azure-key", deployment: "analyzer", endpoint: server.URL, client: server.Client()}
	got, err := a.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "summary" {
		t.Errorf("Content = %q", got)
	}
}

func TestNewAzure_Env(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	if _, err := NewAzure("gpt-4o", Options{}); err == nil || !strings.Contains(err.Error(), "AZURE_OPENAI_API_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}

	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	if _, err := NewAzure("gpt-4o", Options{}); err == nil || !strings.Contains(err.Error(), "AZURE_OPENAI_ENDPOINT") {
		t.Errorf("expected missing endpoint error, got %v", err)
	}

	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "")
	a, err := NewAzure("gpt-4o", Options{})
	if err != nil {
		t.Fatalf("NewAzure error: %v", err)
	}
	if a.deployment != "gpt-4o" {
		t.Errorf("deployment = %q, want model fallback", a.deployment)
	}
	if !strings.HasPrefix(a.url(), "https://example.openai.azure.com/openai/deployments/gpt-4o/") {
		t.Errorf("url = %q", a.url())
	}
}
