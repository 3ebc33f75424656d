package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
)

const (
	defaultClearbitBase = "https://logo.clearbit.com"
	defaultGoogleBase   = "https://www.google.com/s2/favicons"
	minFaviconBytes     = 1000
	maxLogoBytes        = 1 << 20
)

// LogoEndpoints are the logo services probed by DiscoverLogo.
type LogoEndpoints struct {
	Clearbit string
	Google   string
}

func (e LogoEndpoints) withDefaults() LogoEndpoints {
	if e.Clearbit == "" {
		e.Clearbit = defaultClearbitBase
	}
	if e.Google == "" {
		e.Google = defaultGoogleBase
	}
	e.Clearbit = strings.TrimRight(e.Clearbit, "/")
	return e
}

// DiscoverLogo tries the clearbit logo, then the site's /favicon.ico, and
// falls back to the Google favicon service without probing it. It returns
// nil only for an unparseable site URL.
func (s *Scraper) DiscoverLogo(ctx context.Context, siteURL string) *Logo {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	clearbit := s.endpoints.Clearbit + "/" + domain
	if size, ok := s.probeImage(ctx, clearbit); ok && size > 0 {
		return &Logo{URL: clearbit, Source: LogoSourceClearbit}
	}

	favicon := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()
	if size, ok := s.probeImage(ctx, favicon); ok && size > minFaviconBytes {
		return &Logo{URL: favicon, Source: LogoSourceFavicon}
	}

	return &Logo{
		URL:    fmt.Sprintf("%s?domain=%s&sz=64", s.endpoints.Google, url.QueryEscape(domain)),
		Source: LogoSourceGoogle,
	}
}

// probeImage reports the body size of a 200 image response.
func (s *Scraper) probeImage(ctx context.Context, target string) (int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug("Logo probe failed", logger.String("url", target), logger.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "image/") && !strings.HasSuffix(target, ".ico") {
		return 0, false
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return 0, false
	}
	return int(n), true
}
