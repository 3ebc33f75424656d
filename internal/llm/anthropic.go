package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	providerAnthropic      = "anthropic"
	defaultAnthropicTokens = 4096
)

// AnthropicConfig configures an Anthropic-backed model.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// AnthropicModel calls the Anthropic Messages API.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic builds an AnthropicModel. SDK retries are disabled; retries
// are applied by Retrying so only the configured status is retried.
func NewAnthropic(cfg AnthropicConfig, httpClient *http.Client) *AnthropicModel {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}

	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Complete sends a single user turn and joins the text blocks of the reply.
func (m *AnthropicModel) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Response{}, &StatusError{
				Provider:   providerAnthropic,
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Error(),
			}
		}
		return Response{}, err
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}

	text := strings.Join(parts, "\n")
	return Response{Text: text}, nil
}
