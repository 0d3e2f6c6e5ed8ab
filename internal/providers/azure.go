package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const defaultAzureAPIVersion = "2024-06-01"

// Azure implements the Completer interface for an Azure OpenAI deployment.
type Azure struct {
	apiKey     string
	deployment string
	endpoint   string
	client     *http.Client
}

// NewAzure creates a provider for an Azure OpenAI deployment. The endpoint and
// key come from AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY. The deployment
// name is read from AZURE_OPENAI_DEPLOYMENT_NAME, falling back to model.
func NewAzure(model string, opts Options) (*Azure, error) {
	key := os.Getenv("AZURE_OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY environment variable is not set")
	}
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT environment variable is not set")
	}
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")
	if deployment == "" {
		deployment = model
	}
	if deployment == "" {
		return nil, fmt.Errorf("azure deployment name is not set (AZURE_OPENAI_DEPLOYMENT_NAME or model)")
	}
	return &Azure{
		apiKey:     key,
		deployment: deployment,
		endpoint:   strings.TrimRight(endpoint, "/"),
		client:     opts.client(DefaultHTTPTimeout),
	}, nil
}

func (a *Azure) Name() string { return "azure" }

func (a *Azure) url() string {
	version := os.Getenv("AZURE_OPENAI_API_VERSION")
	if version == "" {
		version = defaultAzureAPIVersion
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), url.QueryEscape(version))
}

func (a *Azure) Complete(ctx context.Context, req Request) (string, error) {
	// The deployment selects the model; the body carries none.
	body := newChatRequest("", req)
	respBody, err := postJSON(ctx, a.client, a.Name(), a.url(), map[string]string{
		"api-key": a.apiKey,
	}, body)
	if err != nil {
		return "", err
	}
	return parseChatResponse(a.Name(), respBody)
}
