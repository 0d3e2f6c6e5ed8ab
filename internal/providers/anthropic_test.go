package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropic_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing or wrong x-api-key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		var body anthropicRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.System != "test system" || body.Messages[0].Content != "test prompt" {
			t.Errorf("unexpected body: %+v", body)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: "[logic error] "},
				{Type: "tool_use"},
				{Type: "text", Text: "off by one"},
			},
			Usage: anthropicUsage{InputTokens: 100, OutputTokens: 50},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey: "test-key",
		model:  "claude-sonnet-4-20250514",
		client: &http.Client{
			Transport: &rewriteTransport{
				base:    server.Client().Transport,
				baseURL: server.URL,
			},
		},
	}

	got, err := a.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "[logic error] off by one" {
		t.Errorf("Content = %q", got)
	}
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey: "bad-key",
		model:  "test",
		client: &http.Client{
			Transport: &rewriteTransport{
				base:    server.Client().Transport,
				baseURL: server.URL,
			},
		},
	}

	_, err := a.Complete(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected auth error")
	}
	if !IsAuthError(err) {
		t.Errorf("Expected authError, got %T: %v", err, err)
	}
	if KindOf(err) != InvalidRequest {
		t.Errorf("kind = %v, want invalid_request", KindOf(err))
	}
}

func TestAnthropic_Overloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
	}))
	defer server.Close()

	a := &Anthropic{
		apiKey: "k",
		model:  "test",
		client: &http.Client{Transport: &rewriteTransport{base: server.Client().Transport, baseURL: server.URL}},
	}

	_, err := a.Complete(context.Background(), testRequest())
	if KindOf(err) != TransientServiceError {
		t.Errorf("kind = %v, want transient", KindOf(err))
	}
}

func TestAnthropic_Name(t *testing.T) {
	a := &Anthropic{model: "test"}
	if a.Name() != "anthropic" {
		t.Errorf("Name() = %q, want %q", a.Name(), "anthropic")
	}
}
