package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama/client"
	"github.com/go-logr/logr"
)

// OllamaOptions locates a local Ollama server and the vision model to use.
type OllamaOptions struct {
	BaseURL string
	Port    int
	Model   string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// APIURL is the Ollama API root, e.g. http://localhost:11434/api.
func (o OllamaOptions) APIURL() string {
	return fmt.Sprintf("%s:%d/api", strings.TrimRight(o.BaseURL, "/"), o.Port)
}

func (o OllamaOptions) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// OllamaBackend judges frames with a local vision model served by Ollama.
type OllamaBackend struct {
	provider *chatProvider
	logger   *logr.Logger
	model    string
}

// NewOllamaBackend checks that Ollama is reachable and selects the vision model.
func NewOllamaBackend(ctx context.Context, opts OllamaOptions, logger *slog.Logger) (*OllamaBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := pingOllama(ctx, opts); err != nil {
		return nil, err
	}

	l := logr.FromSlogHandler(logger.Handler())
	provider := &chatProvider{
		client: client.NewClient(
			client.WithBaseURL(opts.APIURL()),
			client.WithHTTPClient(opts.httpClient()),
		),
	}
	if err := provider.UseModel(ctx, &core.Model{ID: opts.Model}); err != nil {
		return nil, fmt.Errorf("failed to select model %s: %w", opts.Model, err)
	}
	return &OllamaBackend{provider: provider, logger: &l, model: opts.Model}, nil
}

func pingOllama(ctx context.Context, opts OllamaOptions) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.APIURL()+"/tags", nil)
	if err != nil {
		return err
	}
	resp, err := opts.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", opts.APIURL(), err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama at %s answered %s", opts.APIURL(), resp.Status)
	}
	return nil
}

func (b *OllamaBackend) Name() string { return "ollama:" + b.model }

// Complete runs a fresh agent with one image attachment per frame and returns
// the model's reply. Each call gets its own agent so conversation memory is
// never shared between videos.
func (b *OllamaBackend) Complete(ctx context.Context, prompt string, images []string) (string, error) {
	a, err := agent.NewAgent(
		bootstrap.WithProvider(b.provider),
		bootstrap.WithLogger(b.logger),
		bootstrap.WithMaxSteps(2),
	)
	if err != nil {
		return "", err
	}

	opts := []agent.RunOptionFunc{
		agent.WithInput(prompt),
		agent.WithStopCondition(stopOnReply),
	}
	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read image '%s': %w", path, err)
		}
		opts = append(opts, agent.WithImageBase64(base64.StdEncoding.EncodeToString(data), imageMimeType(path)))
	}

	resp, err := a.Run(ctx, opts...)
	if err != nil {
		return "", err
	}
	msg := resp.Pop()
	if msg == nil {
		return "", errors.New("no response messages received from model")
	}
	return msg.Content, nil
}

// stopOnReply ends the run at the first assistant message, empty or not.
// The judge is never given tools.
func stopOnReply(agg *agent.AgentRunAggregator) bool {
	last := agg.Pop()
	return last != nil && last.Role == core.AssistantMessageRole
}

// chatProvider is a core.Provider over the Ollama chat endpoint.
type chatProvider struct {
	client *client.OllamaClient
	model  *core.Model
}

func (p *chatProvider) GetCapabilities(ctx context.Context) (*core.Capabilities, error) {
	return &core.Capabilities{
		SupportsChat:   true,
		SupportsImages: true,
	}, nil
}

func (p *chatProvider) UseModel(ctx context.Context, model *core.Model) error {
	if model == nil || model.ID == "" {
		return errors.New("model id is required")
	}
	p.model = model
	return nil
}

func (p *chatProvider) Generate(ctx context.Context, opts *core.GenerateOptions) (*core.Message, error) {
	messages := make([]*client.Message, 0, len(opts.Messages))
	for _, m := range opts.Messages {
		if m == nil {
			continue
		}
		cm := &client.Message{Role: client.Role(m.Role), Content: m.Content}
		for _, img := range m.Images {
			cm.Images = append(cm.Images, img.Base64Encoding)
		}
		messages = append(messages, cm)
	}

	resp, err := p.client.Chat(ctx, &client.ChatRequest{
		Model:    p.model.ID,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling client chat method: %w", err)
	}
	if resp == nil {
		return nil, errors.New("empty chat response")
	}
	return &core.Message{
		Role:    core.AssistantMessageRole,
		Content: resp.Message.Content,
	}, nil
}

func (p *chatProvider) GenerateStream(ctx context.Context, opts *core.GenerateOptions) (<-chan *core.Message, <-chan string, <-chan error) {
	errs := make(chan error, 1)
	errs <- errors.New("streaming is not supported")
	close(errs)
	return nil, nil, errs
}

func imageMimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}
