package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infrahttp "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/http"
)

func TestNewClient_DefaultHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout: time.Second,
		Headers: map[string]string{"User-Agent": "review-bot/1.0", "Accept": "text/html"},
	})

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotUA != "review-bot/1.0" {
		t.Errorf("User-Agent = %q, want default header", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, request header must win over default", gotAccept)
	}
}

func TestNewClient_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	if c := infrahttp.NewClient(nil); c.Timeout != infrahttp.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, infrahttp.DefaultTimeout)
	}
}
