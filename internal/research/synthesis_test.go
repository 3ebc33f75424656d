package research_test

import (
	"testing"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/research"
)

func TestParseSynthesis(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantBody string
		wantKeys []string
	}{
		{
			name:     "fenced json then body",
			response: "Here you go:\n```json\n{\"name\": \"Acme\", \"pricing\": \"paid\"}\n```\n\n# Acme\n\nReview.",
			wantBody: "# Acme\n\nReview.",
			wantKeys: []string{"name", "pricing"},
		},
		{
			name:     "no json block",
			response: "\n# Acme\nJust a body\n",
			wantBody: "# Acme\nJust a body",
		},
		{
			name:     "malformed json keeps body",
			response: "```json\n{not json}\n```\nBody",
			wantBody: "Body",
		},
		{
			name:     "unterminated block",
			response: "```json\n{\"name\": \"Acme\"}",
			wantBody: "```json\n{\"name\": \"Acme\"}",
		},
		{
			name:     "stray yaml front-matter stripped",
			response: "```json\n{\"name\": \"Acme\"}\n```\n---\ntitle: x\n---\nBody",
			wantBody: "Body",
			wantKeys: []string{"name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := research.ParseSynthesis(tt.response)
			if got.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", got.Body, tt.wantBody)
			}
			if len(got.Frontmatter) != len(tt.wantKeys) {
				t.Fatalf("frontmatter = %v, want keys %v", got.Frontmatter, tt.wantKeys)
			}
			for _, k := range tt.wantKeys {
				if _, ok := got.Frontmatter[k]; !ok {
					t.Errorf("missing key %q", k)
				}
			}
		})
	}
}
