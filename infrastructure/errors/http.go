// Package errors turns failed upstream HTTP responses into typed errors that
// carry the status code.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response from an upstream API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%s): %s", e.Status, e.Message)
	}
	return "HTTP error: " + e.Status
}

// HTTPStatus exposes the status code to retry predicates.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// ParseHTTPError reads resp.Body and returns an *HTTPError for status >= 400.
// It returns nil for successful responses and does not close the body.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     status,
			Message:    fmt.Sprintf("read error body: %v", err),
		}
	}

	body := strings.TrimSpace(string(data))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       body,
		Message:    messageFrom(data, body),
	}
}

// messageFrom understands {"message": ...}, {"error": "..."} and
// {"error": {"message": ...}} bodies, falling back to the raw body.
func messageFrom(data []byte, body string) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return body
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return body
}

// IsStatus reports whether err wraps an *HTTPError with the given status.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
