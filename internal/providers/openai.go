package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI implements the Completer interface for OpenAI's API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(model string, opts Options) (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	baseURL := os.Getenv("CODESCAN_OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAI{
		apiKey:  key,
		model:   model,
		baseURL: baseURL,
		client:  opts.client(DefaultHTTPTimeout),
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	body := newChatRequest(o.model, req)
	respBody, err := postJSON(ctx, o.client, o.Name(), o.baseURL, map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, body)
	if err != nil {
		return "", err
	}
	return parseChatResponse(o.Name(), respBody)
}

// newChatRequest builds an OpenAI-compatible chat completion body. Shared by
// the OpenAI, Azure and Ollama providers.
func newChatRequest(model string, req Request) openaiRequest {
	var messages []openaiMessage
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	body := openaiRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens(req),
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		body.TopP = &req.TopP
	}
	return body
}

func parseChatResponse(provider string, respBody []byte) (string, error) {
	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", malformed(provider, "parsing response", err)
	}
	if len(result.Choices) == 0 {
		return "", malformed(provider, "no choices in response", nil)
	}
	content := result.Choices[0].Message.Content
	if content == "" {
		return "", malformed(provider, "empty text content in API response", nil)
	}
	if rl := rateLimitInContent(provider, content); rl != nil {
		return "", rl
	}
	return content, nil
}

type openaiRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	TotalTokens int `json:"total_tokens"`
}
