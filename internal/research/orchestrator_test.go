package research_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/drafts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/llm"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/prompts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/research"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// memStore applies drafts.Fields to in-memory drafts.
type memStore struct {
	mu       sync.Mutex
	drafts   map[uuid.UUID]*domain.Draft
	statuses []domain.Status
	getErr   error
}

func newMemStore(drafts ...*domain.Draft) *memStore {
	s := &memStore{drafts: map[uuid.UUID]*domain.Draft{}}
	for _, d := range drafts {
		s.drafts[d.ID] = d
	}
	return s
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, id uuid.UUID, fields drafts.Fields) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for key, v := range fields {
		switch key {
		case "name":
			d.Name = textOrNil(v)
		case "slug":
			d.Slug = textOrNil(v)
		case "generated_content":
			d.GeneratedContent = textOrNil(v)
		case "logo_url":
			d.LogoURL = textOrNil(v)
		case "error_message":
			d.ErrorMessage = textOrNil(v)
		case "frontmatter":
			d.Frontmatter = v.(domain.JSONMap)
		case "research_data":
			d.ResearchData = v.(domain.JSONMap)
		case "status":
			d.Status = v.(domain.Status)
			s.statuses = append(s.statuses, d.Status)
		}
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListByStatus(_ context.Context, status domain.Status, limit int) ([]domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Draft
	for _, d := range s.drafts {
		if d.Status == status && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) draft(id uuid.UUID) domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.drafts[id]
}

func textOrNil(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

type fakeScraper struct {
	snap *scraper.Snapshot
	logo *scraper.Logo
	err  error
}

func (f *fakeScraper) Scrape(_ context.Context, siteURL string, extra []string) (*scraper.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.snap != nil {
		cp := *f.snap
		return &cp, nil
	}
	snap := &scraper.Snapshot{Homepage: scraper.Page{URL: siteURL}}
	for _, u := range extra {
		snap.ExtraSources = append(snap.ExtraSources, scraper.Page{URL: u})
	}
	return snap, nil
}

func (f *fakeScraper) DiscoverLogo(context.Context, string) *scraper.Logo {
	return f.logo
}

type fakeModel struct {
	mu       sync.Mutex
	prompts  []string
	systems  []string
	complete func(n int, req llm.Request) (llm.Response, error)
}

func (m *fakeModel) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	n := len(m.prompts)
	m.prompts = append(m.prompts, req.Prompt)
	m.systems = append(m.systems, req.System)
	m.mu.Unlock()
	return m.complete(n, req)
}

func fastReplying(text string) *fakeModel {
	return &fakeModel{complete: func(int, llm.Request) (llm.Response, error) {
		return llm.Response{Text: text}, nil
	}}
}

func qualityReplying(text string) *fakeModel {
	return fastReplying(text)
}

const synthesisReply = "```json\n" +
	`{"description": "Lightweight CRM for founders", "pricing": "Free tier, paid from $10/mo", "category": "crm", "tags": ["CRM", "not-a-category"]}` +
	"\n```\n\n## Overview\n\nA focused CRM.\n"

func newOrchestrator(store *memStore, site *fakeScraper, fast, quality llm.Model) *research.Orchestrator {
	return research.NewOrchestrator(store, site, fast, quality, research.Config{
		FastMaxTokens:    1024,
		QualityMaxTokens: 4096,
	}, logger.NewNop(), nil).WithClock(func() time.Time { return fixedNow })
}

func TestRun_DerivesSlugFromHostWhenUnnamed(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://example.io/product", Status: domain.StatusPending}
	store := newMemStore(d)
	site := &fakeScraper{logo: &scraper.Logo{URL: "https://www.google.com/s2/favicons?domain=example.io&sz=64", Source: scraper.LogoSourceGoogle}}
	fast := fastReplying("Example overview, see https://docs.example.io/start.")

	updated, err := newOrchestrator(store, site, fast, qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "example", updated.SlugValue())
	assert.Nil(t, updated.Name)
	assert.Equal(t, domain.StatusDraft, updated.Status)
	assert.Nil(t, updated.ErrorMessage)
	assert.Equal(t, []domain.Status{domain.StatusResearching, domain.StatusDraft}, store.statuses)

	fm := updated.Frontmatter
	assert.Equal(t, "/logos/example.png", fm["logo"])
	assert.Equal(t, "freemium", fm["pricing"])
	assert.Equal(t, "crm", fm["primaryCategory"])
	assert.Equal(t, []string{"crm"}, fm["categories"])
	assert.Equal(t, "Lightweight CRM for founders", fm["description"])
	assert.Equal(t, true, fm["isNew"])
	assert.Equal(t, false, fm["featured"])
	assert.Equal(t, "https://example.io/product", fm["url"])
	assert.NotContains(t, fm, "slug")

	assert.Equal(t, "## Overview\n\nA focused CRM.", updated.Content())
	require.NotNil(t, updated.LogoURL)

	data := updated.ResearchData
	assert.Equal(t, research.PipelineVersion, data["pipeline_version"])
	facets, ok := data["facets"].([]any)
	require.True(t, ok)
	assert.Len(t, facets, 4)

	var citation map[string]any
	for _, raw := range data["sources"].([]any) {
		rec := raw.(map[string]any)
		if rec["url"] == "https://docs.example.io/start" {
			citation = rec
		}
	}
	require.NotNil(t, citation, "cited URL should be tracked")
	assert.Equal(t, []any{"research_citation"}, citation["types"])
	assert.Equal(t, "general", citation["query_type"])
}

func TestRun_TitledHomepageKeepsHostSlug(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://example.io/product", Status: domain.StatusPending}
	store := newMemStore(d)
	site := &fakeScraper{snap: &scraper.Snapshot{Homepage: scraper.Page{
		URL:   "https://example.io/product",
		Title: "Example | Product analytics for teams",
	}}}

	updated, err := newOrchestrator(store, site, fastReplying("ok"), qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "example", updated.SlugValue())
	assert.Equal(t, "Example", updated.NameValue())
	assert.Equal(t, "/logos/example.png", updated.Frontmatter["logo"])
}

func TestRun_KeepsExistingDraftSlug(t *testing.T) {
	d := &domain.Draft{
		ID:     uuid.New(),
		URL:    "https://acme.com",
		Name:   domain.Ptr("Acme CRM"),
		Slug:   domain.Ptr("acme"),
		Status: domain.StatusPending,
	}
	store := newMemStore(d)

	updated, err := newOrchestrator(store, &fakeScraper{}, fastReplying("ok"), qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "acme", updated.SlugValue())
	assert.Equal(t, "Acme CRM", updated.NameValue())
}

func TestRun_EveryModelCallCarriesSystemInstruction(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Name: domain.Ptr("Acme"), Status: domain.StatusPending}
	fast, quality := fastReplying("ok"), qualityReplying(synthesisReply)

	_, err := newOrchestrator(newMemStore(d), &fakeScraper{}, fast, quality).Run(t.Context(), d.ID)
	require.NoError(t, err)

	require.Len(t, fast.systems, 5)
	for i, system := range fast.systems {
		assert.Equal(t, prompts.System(), system, "fast call %d", i)
	}
	assert.Equal(t, []string{prompts.SynthesisSystem()}, quality.systems)
}

func TestRun_ClearbitLogoWins(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Name: domain.Ptr("Acme CRM"), Status: domain.StatusPending}
	store := newMemStore(d)
	site := &fakeScraper{logo: &scraper.Logo{URL: "https://logo.clearbit.com/acme.com", Source: scraper.LogoSourceClearbit}}

	updated, err := newOrchestrator(store, site, fastReplying("ok"), qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "acme-crm", updated.SlugValue())
	assert.Equal(t, "Acme CRM", updated.NameValue())
	assert.Equal(t, "https://logo.clearbit.com/acme.com", updated.Frontmatter["logo"])
	assert.Equal(t, "https://logo.clearbit.com/acme.com", *updated.LogoURL)
}

func TestRun_ModelNameAndSlugWin(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Name: domain.Ptr("acme"), Status: domain.StatusPending}
	store := newMemStore(d)
	reply := "```json\n{\"name\": \"Acme Revenue Cloud\", \"slug\": \"Acme Revenue\"}\n```\nBody text"

	updated, err := newOrchestrator(store, &fakeScraper{}, fastReplying("ok"), qualityReplying(reply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, "Acme Revenue Cloud", updated.NameValue())
	assert.Equal(t, "acme-revenue", updated.SlugValue())
	assert.Equal(t, "Acme Revenue Cloud", updated.Frontmatter["name"])
}

func TestRun_FacetsRunInOrderWithGeneralContext(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Name: domain.Ptr("Acme"), Status: domain.StatusPending}
	store := newMemStore(d)
	fast := &fakeModel{complete: func(n int, _ llm.Request) (llm.Response, error) {
		if n == 0 {
			return llm.Response{Text: "GENERAL-ANSWER-MARKER"}, nil
		}
		return llm.Response{Text: "facet answer", Citations: []string{"https://g2.com/acme"}}, nil
	}}

	_, err := newOrchestrator(store, &fakeScraper{}, fast, qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	require.Len(t, fast.prompts, 5, "four facets then consolidation")
	assert.NotContains(t, fast.prompts[0], "GENERAL-ANSWER-MARKER")
	for _, p := range fast.prompts[1:4] {
		assert.Contains(t, p, "GENERAL-ANSWER-MARKER")
	}
	assert.Contains(t, strings.ToLower(fast.prompts[4]), "pricing")
}

func TestRun_FailuresRevertToPending(t *testing.T) {
	tests := []struct {
		name    string
		site    *fakeScraper
		fast    *fakeModel
		quality *fakeModel
		wantErr error
	}{
		{
			name: "fast model failure",
			site: &fakeScraper{},
			fast: &fakeModel{complete: func(n int, _ llm.Request) (llm.Response, error) {
				if n == 2 {
					return llm.Response{}, &llm.StatusError{Provider: "anthropic", StatusCode: 500, Message: "boom"}
				}
				return llm.Response{Text: "ok"}, nil
			}},
			quality: qualityReplying(synthesisReply),
			wantErr: domain.ErrUpstream,
		},
		{
			name:    "quality model failure",
			site:    &fakeScraper{},
			fast:    fastReplying("ok"),
			quality: &fakeModel{complete: func(int, llm.Request) (llm.Response, error) { return llm.Response{}, errors.New("timeout") }},
			wantErr: domain.ErrUpstream,
		},
		{
			name:    "empty body",
			site:    &fakeScraper{},
			fast:    fastReplying("ok"),
			quality: qualityReplying("```json\n{\"name\":\"X\"}\n```\n   "),
			wantErr: research.ErrEmptyBody,
		},
		{
			name:    "scrape cancelled",
			site:    &fakeScraper{err: context.Canceled},
			fast:    fastReplying("ok"),
			quality: qualityReplying(synthesisReply),
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Status: domain.StatusPending}
			store := newMemStore(d)

			_, err := newOrchestrator(store, tt.site, tt.fast, tt.quality).Run(t.Context(), d.ID)
			require.ErrorIs(t, err, tt.wantErr)

			got := store.draft(d.ID)
			assert.Equal(t, domain.StatusPending, got.Status)
			require.NotNil(t, got.ErrorMessage)
			assert.Equal(t, err.Error(), *got.ErrorMessage)
			assert.Nil(t, got.GeneratedContent)
		})
	}
}

func TestRun_NotFound(t *testing.T) {
	store := newMemStore()
	_, err := newOrchestrator(store, &fakeScraper{}, fastReplying("ok"), qualityReplying(synthesisReply)).Run(t.Context(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, store.statuses)
}

func TestRun_ExtraSourcesTracked(t *testing.T) {
	d := &domain.Draft{
		ID:           uuid.New(),
		URL:          "https://acme.com",
		Name:         domain.Ptr("Acme"),
		ExtraSources: []string{"https://acme.com/docs/"},
		Status:       domain.StatusPending,
	}
	store := newMemStore(d)

	updated, err := newOrchestrator(store, &fakeScraper{}, fastReplying("ok"), qualityReplying(synthesisReply)).Run(t.Context(), d.ID)
	require.NoError(t, err)

	var found bool
	for _, raw := range updated.ResearchData["sources"].([]any) {
		rec := raw.(map[string]any)
		if rec["url"] == "https://acme.com/docs" {
			found = true
			assert.Equal(t, []any{"scrape", "extra_source"}, rec["types"])
		}
	}
	assert.True(t, found)
}

func TestEnqueue(t *testing.T) {
	d := &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Status: domain.StatusPending, ErrorMessage: domain.Ptr("old failure")}
	store := newMemStore(d)

	updated, err := newOrchestrator(store, &fakeScraper{}, fastReplying("ok"), qualityReplying(synthesisReply)).Enqueue(t.Context(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResearching, updated.Status)
	assert.Nil(t, updated.ErrorMessage)
}
