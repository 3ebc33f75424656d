// Package sources records every URL consulted during one research run.
package sources

import (
	"slices"
	"strings"
	"time"
)

// Provenance tags a source with how it was obtained.
type Provenance string

const (
	ProvenanceScrape      Provenance = "scrape"
	ProvenanceCitation    Provenance = "research_citation"
	ProvenanceLogo        Provenance = "logo"
	ProvenanceExtraSource Provenance = "extra_source"
)

// Meta carries optional source details.
type Meta struct {
	QueryType string
	Title     string
}

// Record is one deduplicated source.
type Record struct {
	URL       string       `json:"url"`
	Types     []Provenance `json:"types"`
	QueryType string       `json:"query_type,omitempty"`
	Title     string       `json:"title,omitempty"`
	AddedAt   time.Time    `json:"added_at"`
}

// Tracker is owned by a single research run and is not safe for
// concurrent use.
type Tracker struct {
	now     func() time.Time
	order   []string
	records map[string]*Record
}

// NewTracker creates a tracker using now for timestamps; nil means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:     now,
		records: make(map[string]*Record),
	}
}

// Add registers rawURL with provenance p. A URL already present (modulo one
// trailing slash) only gains the tag.
func (t *Tracker) Add(rawURL string, p Provenance, meta Meta) {
	if rawURL == "" {
		return
	}
	normalized := strings.TrimSuffix(rawURL, "/")

	if existing, ok := t.records[normalized]; ok {
		if !slices.Contains(existing.Types, p) {
			existing.Types = append(existing.Types, p)
		}
		return
	}

	t.records[normalized] = &Record{
		URL:       normalized,
		Types:     []Provenance{p},
		QueryType: meta.QueryType,
		Title:     meta.Title,
		AddedAt:   t.now(),
	}
	t.order = append(t.order, normalized)
}

// AddMany registers research citations for queryType.
func (t *Tracker) AddMany(urls []string, queryType string) {
	for _, u := range urls {
		t.Add(u, ProvenanceCitation, Meta{QueryType: queryType})
	}
}

// List returns copies of the records in insertion order.
func (t *Tracker) List() []Record {
	out := make([]Record, 0, len(t.order))
	for _, key := range t.order {
		r := *t.records[key]
		r.Types = slices.Clone(r.Types)
		out = append(out, r)
	}
	return out
}

// Count returns the number of distinct normalized URLs.
func (t *Tracker) Count() int {
	return len(t.order)
}
