package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dshills/codescan/internal/window"
)

const (
	// DefaultMaxTokens caps the completion length when a request leaves it unset.
	DefaultMaxTokens = 3000
	// DefaultHTTPTimeout bounds a single HTTP round trip.
	DefaultHTTPTimeout = 120 * time.Second
)

// Request is one completion call for one window.
type Request struct {
	System      string
	Prompt      string
	Window      window.Window
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Completer is the remote completion capability: prompt and window in,
// analysis text out.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Func adapts a function to the Completer interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

func (f Func) Name() string { return "func" }

// Options configures provider construction.
type Options struct {
	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
	// Timeout applies to the default client. Zero means DefaultHTTPTimeout.
	Timeout time.Duration
}

func (o Options) client(fallback time.Duration) *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{Timeout: timeout}
}

// New creates a provider by name.
func New(ctx context.Context, provider, model string, opts Options) (Completer, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model, opts)
	case "openai":
		return NewOpenAI(model, opts)
	case "azure", "azure-openai":
		return NewAzure(model, opts)
	case "gemini", "google":
		return NewGemini(ctx, model, opts)
	case "ollama", "lmstudio":
		return NewOllama(model, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Names lists the provider names accepted by New.
func Names() []string {
	return []string{"anthropic", "azure", "gemini", "ollama", "openai"}
}

// Known reports whether New accepts name, aliases included.
func Known(name string) bool {
	switch name {
	case "anthropic", "openai", "azure", "azure-openai", "gemini", "google", "ollama", "lmstudio":
		return true
	}
	return false
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
