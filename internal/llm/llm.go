// Package llm wraps the model providers behind a single Complete call.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Request is one single-turn completion.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Response is the model's text plus any source URLs the provider cited.
type Response struct {
	Text      string
	Citations []string
}

// Model completes prompts.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// StatusError preserves the upstream HTTP status of a failed call.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPStatus satisfies retry.StatusCoder.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\])]+`)

// ExtractURLs returns the distinct URLs mentioned in text, in order, with
// trailing punctuation removed.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// CitationsOrURLs prefers provider citations and falls back to URLs found
// in the response text.
func CitationsOrURLs(resp Response) []string {
	if len(resp.Citations) > 0 {
		return resp.Citations
	}
	return ExtractURLs(resp.Text)
}
