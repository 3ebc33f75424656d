package scraper

// Page is what was extracted from one fetched URL. Found is false when the
// page could not be fetched or looked like a block page.
type Page struct {
	URL         string   `json:"url"`
	Found       bool     `json:"found"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	SiteName    string   `json:"site_name,omitempty"`
	H1s         []string `json:"h1s,omitempty"`
	Sections    []string `json:"sections,omitempty"`
	Prices      []string `json:"prices_detected,omitempty"`
	Text        string   `json:"raw_text,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Logo is the result of logo discovery.
type Logo struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Logo sources in preference order.
const (
	LogoSourceClearbit = "clearbit"
	LogoSourceFavicon  = "favicon"
	LogoSourceGoogle   = "google_fallback"
)

// Snapshot is the scrape stage output for one tool.
type Snapshot struct {
	Homepage     Page   `json:"homepage"`
	FeaturesPage Page   `json:"features_page"`
	PricingPage  Page   `json:"pricing_page"`
	ExtraSources []Page `json:"extra_sources,omitempty"`
	Logo         *Logo  `json:"logo,omitempty"`
}

// FoundPages returns the names of the subpages that were fetched.
func (s *Snapshot) FoundPages() []string {
	var out []string
	if s.FeaturesPage.Found {
		out = append(out, "features_page")
	}
	if s.PricingPage.Found {
		out = append(out, "pricing_page")
	}
	for _, p := range s.ExtraSources {
		if p.Found {
			out = append(out, p.URL)
		}
	}
	return out
}

// SiteName returns the best display name the homepage offers.
func (s *Snapshot) SiteName() string {
	if s.Homepage.SiteName != "" {
		return s.Homepage.SiteName
	}
	return s.Homepage.Title
}
