package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	azureModule        = "physeval/analyzer"
	azureModuleVersion = "v1.0.0"
	cognitiveScope     = "https://cognitiveservices.azure.com/.default"
)

// AzureOptions configures an Azure OpenAI chat deployment. When APIKey is
// empty the default Azure credential chain is used instead.
type AzureOptions struct {
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string

	// Transport overrides the HTTP client, mostly for tests.
	Transport policy.Transporter
}

// AzureOpenAIBackend judges frames through an Azure OpenAI chat completions deployment.
type AzureOpenAIBackend struct {
	pipeline   runtime.Pipeline
	url        string
	deployment string
}

// NewAzureOpenAIBackend builds the request pipeline. azcore's own retry
// policy is disabled; retries belong to the Invoker.
func NewAzureOpenAIBackend(opts AzureOptions) (*AzureOpenAIBackend, error) {
	if opts.Endpoint == "" || opts.Deployment == "" {
		return nil, errors.New("azure endpoint and deployment are required")
	}

	var auth policy.Policy
	if opts.APIKey != "" {
		auth = runtime.NewKeyCredentialPolicy(azcore.NewKeyCredential(opts.APIKey), "api-key", nil)
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", err)
		}
		auth = runtime.NewBearerTokenPolicy(cred, []string{cognitiveScope}, nil)
	}

	clientOpts := &policy.ClientOptions{
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Transport: opts.Transport,
	}
	pl := runtime.NewPipeline(azureModule, azureModuleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, clientOpts)

	endpoint := strings.TrimSuffix(opts.Endpoint, "/")
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions", endpoint, url.PathEscape(opts.Deployment))
	if opts.APIVersion != "" {
		u += "?api-version=" + url.QueryEscape(opts.APIVersion)
	}

	return &AzureOpenAIBackend{pipeline: pl, url: u, deployment: opts.Deployment}, nil
}

func (b *AzureOpenAIBackend) Name() string { return "azure:" + b.deployment }

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt followed by every image as a data URL in a single user message.
func (b *AzureOpenAIBackend) Complete(ctx context.Context, prompt string, images []string) (string, error) {
	parts := []chatContentPart{{Type: "text", Text: prompt}}
	for _, path := range images {
		dataURL, err := imageDataURL(path)
		if err != nil {
			return "", err
		}
		parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}})
	}

	req, err := runtime.NewRequest(ctx, http.MethodPost, b.url)
	if err != nil {
		return "", err
	}
	body := chatRequest{
		Model:    b.deployment,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return "", err
	}

	resp, err := b.pipeline.Do(req)
	if err != nil {
		return "", err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return "", runtime.NewResponseError(resp)
	}

	var out chatResponse
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("malformed response: no choices")
	}
	if out.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *out.Choices[0].Message.Content, nil
}

// imageDataURL inlines a local image as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image '%s': %w", path, err)
	}
	return "data:" + imageMimeType(path) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
