package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultChatBaseURL = "https://api.perplexity.ai"
	defaultChatTokens  = 2048
)

// ChatConfig configures an OpenAI-compatible chat-completions provider
// such as Perplexity.
type ChatConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// ChatModel calls {BaseURL}/chat/completions through go-openai.
type ChatModel struct {
	cfg        ChatConfig
	httpClient openai.HTTPDoer
}

// NewChat builds a ChatModel.
func NewChat(cfg ChatConfig, httpClient *http.Client) *ChatModel {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatBaseURL
	}
	if cfg.Provider == "" {
		cfg.Provider = "chat"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultChatTokens
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ChatModel{cfg: cfg, httpClient: httpClient}
}

// Complete issues one chat completion.
func (m *ChatModel) Complete(ctx context.Context, req Request) (Response, error) {
	if m.cfg.APIKey == "" {
		return Response{}, fmt.Errorf("%s: api key required", m.cfg.Provider)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.cfg.MaxTokens
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	// One recorder per call: the citations live outside go-openai's response type.
	rec := &citationRecorder{next: m.httpClient}
	cfg := openai.DefaultConfig(m.cfg.APIKey)
	cfg.BaseURL = m.cfg.BaseURL
	cfg.HTTPClient = rec
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.cfg.Model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Response{}, m.statusError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: response has no choices", m.cfg.Provider)
	}

	return Response{
		Text:      resp.Choices[0].Message.Content,
		Citations: rec.citations,
	}, nil
}

// statusError lifts go-openai's HTTP failures into *StatusError so retry
// predicates see the upstream status.
func (m *ChatModel) statusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{Provider: m.cfg.Provider, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{
			Provider:   m.cfg.Provider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    strings.TrimSpace(string(reqErr.Body)),
		}
	}
	return fmt.Errorf("%s: %w", m.cfg.Provider, err)
}

// citationRecorder reads Perplexity's citations (or search_results URLs)
// from a successful response body and hands an unread copy back.
type citationRecorder struct {
	next      openai.HTTPDoer
	citations []string
}

func (r *citationRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.next.Do(req)
	if err != nil || resp.StatusCode >= http.StatusBadRequest {
		return resp, err
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var extra struct {
		Citations     []string `json:"citations"`
		SearchResults []struct {
			URL string `json:"url"`
		} `json:"search_results"`
	}
	if json.Unmarshal(data, &extra) != nil {
		return resp, nil
	}
	r.citations = extra.Citations
	if len(r.citations) == 0 {
		for _, sr := range extra.SearchResults {
			if sr.URL != "" {
				r.citations = append(r.citations, sr.URL)
			}
		}
	}
	return resp, nil
}
