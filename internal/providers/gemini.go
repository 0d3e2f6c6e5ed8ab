package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// Gemini implements the Completer interface with the Google GenAI SDK.
type Gemini struct {
	model  string
	client *genai.Client
}

// NewGemini creates a new Gemini provider.
func NewGemini(ctx context.Context, model string, opts Options) (*Gemini, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set")
	}
	return newGemini(ctx, model, key, os.Getenv("CODESCAN_GEMINI_BASE_URL"), opts)
}

func newGemini(ctx context.Context, model, key, baseURL string, opts Options) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.client(DefaultHTTPTimeout),
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{model: model, client: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", geminiError(g.Name(), err)
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", malformed(g.Name(), "no content in response", nil)
	}
	return resp.Text(), nil
}

func geminiError(provider string, err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		e := statusError(provider, apiErr.Code, nil, []byte(apiErr.Message))
		e.Err = err
		return e
	}
	return transportError(provider, err)
}
