// Package research turns a draft URL into a reviewed document: a site
// scrape, a fast-model review across facets, then a quality-model
// synthesis.
package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/drafts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/llm"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/prompts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/sources"
)

// PipelineVersion tags every research-data snapshot.
const PipelineVersion = "2.0"

const (
	upstreamFastModel    = "fast_model"
	upstreamQualityModel = "quality_model"
	queryConsolidation   = "consolidation"

	failureWriteTimeout = 10 * time.Second
)

// ErrEmptyBody is returned when synthesis produced no review text.
var ErrEmptyBody = errors.New("synthesis returned an empty body")

// DraftStore is the part of the draft repository research needs.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
	Update(ctx context.Context, id uuid.UUID, fields drafts.Fields) (*domain.Draft, error)
}

// SiteScraper fetches the subject's pages and logo.
type SiteScraper interface {
	Scrape(ctx context.Context, siteURL string, extra []string) (*scraper.Snapshot, error)
	DiscoverLogo(ctx context.Context, siteURL string) *scraper.Logo
}

// Config tunes model calls and the written style.
type Config struct {
	Style            prompts.Style
	FastMaxTokens    int
	QualityMaxTokens int
}

// Orchestrator runs the research pipeline for one draft at a time.
type Orchestrator struct {
	store   DraftStore
	scraper SiteScraper
	fast    llm.Model
	quality llm.Model
	cfg     Config
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrchestrator wires the pipeline. m may be nil.
func NewOrchestrator(
	store DraftStore,
	site SiteScraper,
	fast, quality llm.Model,
	cfg Config,
	log logger.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:   store,
		scraper: site,
		fast:    fast,
		quality: quality,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for source timestamps.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Snapshot is the research_data document saved on the draft.
type Snapshot struct {
	Scrape          *scraper.Snapshot     `json:"scrape"`
	Facets          []prompts.FacetResult `json:"facets"`
	Consolidation   string                `json:"consolidation"`
	Sources         []sources.Record      `json:"sources"`
	SourceCount     int                   `json:"source_count"`
	PipelineVersion string                `json:"pipeline_version"`
	ResearchedAt    time.Time             `json:"researched_at"`
}

// Enqueue marks a draft for the research worker and clears its error.
func (o *Orchestrator) Enqueue(ctx context.Context, id uuid.UUID) (*domain.Draft, error) {
	return o.store.Update(ctx, id, drafts.Fields{
		"status":        domain.StatusResearching,
		"error_message": nil,
	})
}

// Run researches one draft end to end. On failure the draft goes back to
// pending with the error recorded.
func (o *Orchestrator) Run(ctx context.Context, id uuid.UUID) (*domain.Draft, error) {
	start := time.Now()

	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = o.Enqueue(ctx, id); err != nil {
		return nil, fmt.Errorf("mark researching: %w", err)
	}

	log := o.log.With(logger.String("draft_id", id.String()), logger.String("url", d.URL))
	log.Info("Research started")

	updated, err := o.run(ctx, d, log)
	if err != nil {
		o.metrics.ObserveResearch(metrics.OutcomeFailure, time.Since(start))
		log.Error("Research failed", logger.Error(err))
		o.fail(ctx, id, err, log)
		return nil, err
	}

	o.metrics.ObserveResearch(metrics.OutcomeSuccess, time.Since(start))
	log.Info("Research complete",
		logger.String("slug", updated.SlugValue()),
		logger.Duration("duration", time.Since(start)),
	)
	return updated, nil
}

func (o *Orchestrator) run(ctx context.Context, d *domain.Draft, log logger.Logger) (*domain.Draft, error) {
	tracker := sources.NewTracker(o.now)

	snap, err := o.scrape(ctx, d, tracker)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	log.Debug("Scrape stage done", logger.Strings("found_pages", snap.FoundPages()))

	subject := prompts.Subject{Name: d.NameValue(), URL: d.URL}
	notes, err := o.review(ctx, subject, snap, tracker)
	if err != nil {
		return nil, err
	}
	log.Debug("Review stage done", logger.Int("sources", tracker.Count()))

	if subject.Name == "" {
		subject.Name = snap.SiteName()
	}
	synth, err := o.synthesize(ctx, subject, snap, notes)
	if err != nil {
		return nil, err
	}

	return o.persist(ctx, d, snap, notes, synth, tracker)
}

// scrape fetches the site and logo and registers every consulted URL.
func (o *Orchestrator) scrape(ctx context.Context, d *domain.Draft, tracker *sources.Tracker) (*scraper.Snapshot, error) {
	snap, err := o.scraper.Scrape(ctx, d.URL, d.ExtraSources)
	if err != nil {
		return nil, err
	}
	snap.Logo = o.scraper.DiscoverLogo(ctx, d.URL)

	tracker.Add(d.URL, sources.ProvenanceScrape, sources.Meta{Title: snap.Homepage.Title})
	for _, page := range []scraper.Page{snap.FeaturesPage, snap.PricingPage} {
		if page.URL != "" {
			tracker.Add(page.URL, sources.ProvenanceScrape, sources.Meta{Title: page.Title})
		}
	}
	for _, page := range snap.ExtraSources {
		tracker.Add(page.URL, sources.ProvenanceScrape, sources.Meta{Title: page.Title})
		tracker.Add(page.URL, sources.ProvenanceExtraSource, sources.Meta{})
	}
	if snap.Logo != nil {
		tracker.Add(snap.Logo.URL, sources.ProvenanceLogo, sources.Meta{QueryType: snap.Logo.Source})
	}
	return snap, nil
}

// review asks the fast model every facet in order, each after general
// seeing the general answer, then consolidates.
func (o *Orchestrator) review(
	ctx context.Context,
	subject prompts.Subject,
	snap *scraper.Snapshot,
	tracker *sources.Tracker,
) (prompts.Notes, error) {
	var (
		notes          prompts.Notes
		generalContext string
	)
	for _, facet := range prompts.Facets() {
		resp, err := o.fast.Complete(ctx, llm.Request{
			System:    prompts.System(),
			Prompt:    prompts.ForFacet(facet, subject, snap, generalContext),
			MaxTokens: o.cfg.FastMaxTokens,
		})
		if err != nil {
			return notes, domain.Upstream(upstreamFastModel, fmt.Errorf("%s review: %w", facet, err))
		}

		cited := llm.CitationsOrURLs(resp)
		tracker.AddMany(cited, string(facet))
		notes.Facets = append(notes.Facets, prompts.FacetResult{
			Facet:    facet,
			Response: resp.Text,
			Sources:  cited,
		})
		if facet == prompts.FacetGeneral {
			generalContext = resp.Text
		}
	}

	resp, err := o.fast.Complete(ctx, llm.Request{
		System:    prompts.System(),
		Prompt:    prompts.Consolidation(subject, snap, notes.Facets),
		MaxTokens: o.cfg.FastMaxTokens,
	})
	if err != nil {
		return notes, domain.Upstream(upstreamFastModel, fmt.Errorf("consolidation: %w", err))
	}
	tracker.AddMany(llm.CitationsOrURLs(resp), queryConsolidation)
	notes.Consolidation = resp.Text
	return notes, nil
}

func (o *Orchestrator) synthesize(
	ctx context.Context,
	subject prompts.Subject,
	snap *scraper.Snapshot,
	notes prompts.Notes,
) (Synthesis, error) {
	resp, err := o.quality.Complete(ctx, llm.Request{
		System:    prompts.SynthesisSystem(),
		Prompt:    prompts.Synthesis(subject, snap, notes, o.cfg.Style),
		MaxTokens: o.cfg.QualityMaxTokens,
	})
	if err != nil {
		return Synthesis{}, domain.Upstream(upstreamQualityModel, fmt.Errorf("synthesis: %w", err))
	}

	synth := ParseSynthesis(resp.Text)
	if synth.Body == "" {
		return Synthesis{}, ErrEmptyBody
	}
	return synth, nil
}

func (o *Orchestrator) persist(
	ctx context.Context,
	d *domain.Draft,
	snap *scraper.Snapshot,
	notes prompts.Notes,
	synth Synthesis,
	tracker *sources.Tracker,
) (*domain.Draft, error) {
	name, slug := identity(synth.Frontmatter, d, snap)
	fm := mergeFrontmatter(d.Frontmatter, synth.Frontmatter, d, snap, name, slug)

	data, err := domain.ToJSONMap(Snapshot{
		Scrape:          snap,
		Facets:          notes.Facets,
		Consolidation:   notes.Consolidation,
		Sources:         tracker.List(),
		SourceCount:     tracker.Count(),
		PipelineVersion: PipelineVersion,
		ResearchedAt:    o.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode research data: %w", err)
	}

	var logo any
	if snap.Logo != nil {
		logo = snap.Logo.URL
	}

	updated, err := o.store.Update(ctx, d.ID, drafts.Fields{
		"name":              nullable(name),
		"slug":              nullable(slug),
		"generated_content": synth.Body,
		"logo_url":          logo,
		"frontmatter":       fm,
		"research_data":     data,
		"status":            domain.StatusDraft,
		"error_message":     nil,
	})
	if err != nil {
		return nil, fmt.Errorf("save research: %w", err)
	}
	return updated, nil
}

// fail reverts the draft to pending with the error. It uses a fresh
// context so a cancelled run still records why it stopped.
func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, cause error, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if _, err := o.store.Update(ctx, id, drafts.Fields{
		"status":        domain.StatusPending,
		"error_message": cause.Error(),
	}); err != nil {
		log.Error("Failed to record research failure", logger.Error(err))
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
