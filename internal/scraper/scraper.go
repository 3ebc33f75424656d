// Package scraper fetches a tool's website and extracts what the research
// prompts need: homepage identity, feature headings and pricing text.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
)

const (
	// MinPageBytes is the smallest body accepted; block pages tend to be tiny.
	MinPageBytes = 500
	// MaxConcurrentFetches bounds the sub-page fetches in flight per scrape.
	MaxConcurrentFetches = 4

	maxBodyBytes   = 4 << 20
	maxTextRunes   = 3000
	maxSections    = 20
	maxPrices      = 15
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

var (
	pricingPath  = regexp.MustCompile(`(?i)/(pricing|plans|packages|plans-and-pricing|price)(/|$|\?|#)`)
	featuresPath = regexp.MustCompile(`(?i)/(features|product|capabilities|platform|solutions|how-it-works)(/|$|\?|#)`)
	pricePattern = regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?(?:\s*/\s*(?:mo(?:nth)?|yr|year|user|seat))?`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Scraper fetches pages with browser-like headers.
type Scraper struct {
	client    *http.Client
	log       logger.Logger
	endpoints LogoEndpoints
}

// New creates a Scraper. The client should carry a timeout.
func New(client *http.Client, log logger.Logger, endpoints LogoEndpoints) *Scraper {
	return &Scraper{
		client:    client,
		log:       log,
		endpoints: endpoints.withDefaults(),
	}
}

// Scrape fetches the homepage, then the discovered features and pricing
// pages and every extra source concurrently. Page failures only mark the
// page not found; the returned error is non-nil only when ctx ends.
func (s *Scraper) Scrape(ctx context.Context, siteURL string, extra []string) (*Snapshot, error) {
	snap := &Snapshot{}

	home, doc := s.fetch(ctx, siteURL)
	snap.Homepage = home
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	var featuresURL, pricingURL string
	if doc != nil {
		featuresURL, pricingURL = discoverPages(doc, siteURL)
	}
	snap.FeaturesPage.URL = featuresURL
	snap.PricingPage.URL = pricingURL
	snap.ExtraSources = make([]Page, len(extra))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentFetches)
	fetchInto := func(dst *Page, pageURL string) {
		g.Go(func() error {
			*dst, _ = s.fetch(gctx, pageURL)
			return gctx.Err()
		})
	}
	if featuresURL != "" {
		fetchInto(&snap.FeaturesPage, featuresURL)
	}
	if pricingURL != "" {
		fetchInto(&snap.PricingPage, pricingURL)
	}
	for i, u := range extra {
		fetchInto(&snap.ExtraSources[i], u)
	}
	if err := g.Wait(); err != nil {
		return snap, err
	}

	s.log.Debug("Scrape complete",
		logger.String("url", siteURL),
		logger.Bool("homepage_found", snap.Homepage.Found),
		logger.Bool("features_found", snap.FeaturesPage.Found),
		logger.Bool("pricing_found", snap.PricingPage.Found),
		logger.Int("extra_sources", len(extra)),
	)
	return snap, nil
}

// FetchPage fetches and extracts a single page. Non-2xx and tiny responses
// yield Found=false without an error; only network faults return one.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (Page, error) {
	page, _, err := s.fetchDoc(ctx, pageURL)
	return page, err
}

// fetch is FetchPage for the scrape stage, where errors only mark the page.
func (s *Scraper) fetch(ctx context.Context, pageURL string) (Page, *goquery.Document) {
	page, doc, err := s.fetchDoc(ctx, pageURL)
	if err != nil {
		s.log.Debug("Page fetch failed", logger.String("url", pageURL), logger.Error(err))
	}
	return page, doc
}

func (s *Scraper) fetchDoc(ctx context.Context, pageURL string) (Page, *goquery.Document, error) {
	body, err := s.get(ctx, pageURL)
	if err != nil {
		return Page{URL: pageURL, Error: err.Error()}, nil, err
	}
	if body == nil {
		return Page{URL: pageURL}, nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{URL: pageURL, Error: err.Error()}, nil, nil
	}
	page := extractPage(doc, pageURL)
	return page, doc, nil
}

// errNotUsable marks responses that are not worth parsing.
var errNotUsable = errors.New("response not usable")

// get returns the body, nil for a non-usable response, or a network error.
func (s *Scraper) get(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := s.getWith(ctx, pageURL, acceptHTML)
	if errors.Is(err, errNotUsable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(body) < MinPageBytes {
		return nil, nil
	}
	return body, nil
}

func (s *Scraper) getWith(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, errNotUsable
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return body, nil
}

func extractPage(doc *goquery.Document, pageURL string) Page {
	title := strings.TrimSpace(doc.Find("title").First().Text())

	description := metaContent(doc, "meta[name='description']")
	if description == "" {
		description = metaContent(doc, "meta[property='og:description']")
	}

	siteName := metaContent(doc, "meta[property='og:site_name']")
	if siteName == "" {
		siteName = nameFromTitle(title)
	}

	var h1s []string
	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		if text := collapse(sel.Text()); text != "" {
			h1s = append(h1s, text)
		}
	})

	var sections []string
	doc.Find("h2, h3").Each(func(_ int, sel *goquery.Selection) {
		text := collapse(sel.Text())
		if len(text) > 3 && len(text) < 100 && len(sections) < maxSections {
			sections = append(sections, text)
		}
	})

	doc.Find("script, style, noscript, svg").Remove()
	text := collapse(doc.Find("body").Text())

	return Page{
		URL:         pageURL,
		Found:       true,
		Title:       title,
		Description: description,
		SiteName:    siteName,
		H1s:         h1s,
		Sections:    sections,
		Prices:      detectPrices(text),
		Text:        truncateRunes(text, maxTextRunes),
	}
}

// discoverPages finds same-host features and pricing links on the homepage.
func discoverPages(doc *goquery.Document, siteURL string) (featuresURL, pricingURL string) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", ""
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if !sameHost(resolved.Hostname(), base.Hostname()) {
			return true
		}
		resolved.Fragment = ""

		switch {
		case pricingURL == "" && pricingPath.MatchString(resolved.Path+"/"):
			pricingURL = resolved.String()
		case featuresURL == "" && featuresPath.MatchString(resolved.Path+"/"):
			featuresURL = resolved.String()
		}
		return featuresURL == "" || pricingURL == ""
	})
	return featuresURL, pricingURL
}

func sameHost(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func nameFromTitle(title string) string {
	for _, sep := range []string{"|", " - ", " – ", ":"} {
		if before, _, found := strings.Cut(title, sep); found {
			return strings.TrimSpace(before)
		}
	}
	return strings.TrimSpace(title)
}

func detectPrices(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range pricePattern.FindAllString(text, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
		if len(out) == maxPrices {
			break
		}
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
