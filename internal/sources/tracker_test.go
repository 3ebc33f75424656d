package sources_test

import (
	"testing"
	"time"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/sources"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func TestTracker_AddDeduplicatesTrailingSlash(t *testing.T) {
	t.Parallel()

	tr := sources.NewTracker(fixedClock())
	tr.Add("https://acme.example/", sources.ProvenanceScrape, sources.Meta{})
	tr.Add("https://acme.example", sources.ProvenanceCitation, sources.Meta{QueryType: "general"})
	tr.Add("https://acme.example/", sources.ProvenanceScrape, sources.Meta{})

	if tr.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", tr.Count())
	}

	rec := tr.List()[0]
	if rec.URL != "https://acme.example" {
		t.Errorf("URL = %q, want normalized", rec.URL)
	}
	want := []sources.Provenance{sources.ProvenanceScrape, sources.ProvenanceCitation}
	if len(rec.Types) != len(want) || rec.Types[0] != want[0] || rec.Types[1] != want[1] {
		t.Errorf("Types = %v, want %v", rec.Types, want)
	}
	if rec.QueryType != "" {
		t.Errorf("QueryType = %q, first insert had none", rec.QueryType)
	}
}

func TestTracker_OnlyOneSlashStripped(t *testing.T) {
	t.Parallel()

	tr := sources.NewTracker(nil)
	tr.Add("https://acme.example//", sources.ProvenanceScrape, sources.Meta{})
	tr.Add("https://acme.example", sources.ProvenanceScrape, sources.Meta{})

	if tr.Count() != 2 {
		t.Errorf("Count() = %d, want 2", tr.Count())
	}
}

func TestTracker_IgnoresEmptyURL(t *testing.T) {
	t.Parallel()

	tr := sources.NewTracker(nil)
	tr.Add("", sources.ProvenanceScrape, sources.Meta{})
	tr.AddMany(nil, "pricing")

	if tr.Count() != 0 {
		t.Errorf("Count() = %d, want 0", tr.Count())
	}
}

func TestTracker_AddManyPreservesOrder(t *testing.T) {
	t.Parallel()

	tr := sources.NewTracker(fixedClock())
	tr.Add("https://acme.example", sources.ProvenanceScrape, sources.Meta{})
	tr.AddMany([]string{"https://g2.com/acme", "https://reddit.com/r/sales", "https://g2.com/acme/"}, "reviews")

	list := tr.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}

	wantURLs := []string{"https://acme.example", "https://g2.com/acme", "https://reddit.com/r/sales"}
	for i, rec := range list {
		if rec.URL != wantURLs[i] {
			t.Errorf("List()[%d].URL = %q, want %q", i, rec.URL, wantURLs[i])
		}
	}
	if list[1].QueryType != "reviews" || list[1].Types[0] != sources.ProvenanceCitation {
		t.Errorf("citation record = %+v", list[1])
	}
	if !list[0].AddedAt.Before(list[1].AddedAt) {
		t.Error("AddedAt should follow insertion order with the injected clock")
	}
}

func TestTracker_ListReturnsCopies(t *testing.T) {
	t.Parallel()

	tr := sources.NewTracker(nil)
	tr.Add("https://acme.example", sources.ProvenanceScrape, sources.Meta{})

	list := tr.List()
	list[0].Types[0] = sources.ProvenanceLogo

	if got := tr.List()[0].Types[0]; got != sources.ProvenanceScrape {
		t.Errorf("tracker mutated through List(): %q", got)
	}
}
