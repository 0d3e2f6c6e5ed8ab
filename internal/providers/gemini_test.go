package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGemini_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["systemInstruction"]; !ok {
			t.Error("system instruction not sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"[security issue] hardcoded credential"}]}}]}`))
	}))
	defer server.Close()

	g, err := newGemini(context.Background(), "gemini-2.0-flash", "test-key", server.URL, Options{HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("newGemini error: %v", err)
	}

	got, err := g.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "[security issue] hardcoded credential" {
		t.Errorf("Content = %q", got)
	}
}

func TestGemini_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{429, RateLimited},
		{500, TransientServiceError},
		{400, InvalidRequest},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope","status":"ERR"}}`, tt.status)
		}))

		g, err := newGemini(context.Background(), "gemini-2.0-flash", "k", server.URL, Options{HTTPClient: server.Client()})
		if err != nil {
			server.Close()
			t.Fatalf("newGemini error: %v", err)
		}
		_, err = g.Complete(context.Background(), testRequest())
		server.Close()

		if got := KindOf(err); got != tt.want {
			t.Errorf("status %d: kind = %v, want %v (err: %v)", tt.status, got, tt.want, err)
		}
	}
}

func TestGemini_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	if _, err := NewGemini(context.Background(), "gemini-2.0-flash", Options{}); err == nil {
		t.Error("expected error without an API key")
	}
}
