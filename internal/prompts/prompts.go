// Package prompts builds the text sent to every research and synthesis
// model call. All functions are pure.
package prompts

import (
	"fmt"
	"strings"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/content"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
)

// InsufficientData is the marker models are told to emit instead of guessing.
const InsufficientData = "INSUFFICIENT_DATA"

const (
	maxHeadlines        = 3
	maxPricingHint      = 500
	maxSynthesisSection = 3000
)

// Facet is one research question asked of the fast model.
type Facet string

const (
	FacetGeneral     Facet = "general"
	FacetPricing     Facet = "pricing"
	FacetReviews     Facet = "reviews"
	FacetCompetitors Facet = "competitors"
)

// Facets returns the facets in execution order.
func Facets() []Facet {
	return []Facet{FacetGeneral, FacetPricing, FacetReviews, FacetCompetitors}
}

// Subject identifies the tool under research.
type Subject struct {
	Name string
	URL  string
}

// FacetResult is a fast-model answer to one facet.
type FacetResult struct {
	Facet    Facet    `json:"facet"`
	Response string   `json:"response"`
	Sources  []string `json:"citations,omitempty"`
}

// Insufficient reports whether the model declined to answer.
func (r FacetResult) Insufficient() bool {
	return strings.Contains(strings.ToUpper(r.Response), InsufficientData)
}

const systemPrompt = `You are a GTM tool research analyst. Provide detailed, factual analysis with specific data points. Cite sources when possible.

CRITICAL: If you cannot find reliable, verifiable information about the specific product asked about, say INSUFFICIENT_DATA rather than guessing or returning data about a different product. Never fabricate review scores, user quotes, or pricing data.`

// System returns the research analyst system instruction.
func System() string {
	return systemPrompt
}

// ProductIdentity anchors every facet prompt to one specific product.
func ProductIdentity(s Subject, snap *scraper.Snapshot) string {
	title, desc := s.Name, ""
	var h1s []string
	if snap != nil {
		if snap.Homepage.Title != "" {
			title = snap.Homepage.Title
		}
		desc = snap.Homepage.Description
		h1s = snap.Homepage.H1s
	}
	if len(h1s) > maxHeadlines {
		h1s = h1s[:maxHeadlines]
	}
	domain := content.Domain(s.URL)

	var b strings.Builder
	b.WriteString("=== PRODUCT IDENTITY ===\n")
	fmt.Fprintf(&b, "Name: %q\n", s.Name)
	fmt.Fprintf(&b, "URL: %s\n", s.URL)
	fmt.Fprintf(&b, "Domain: %s\n", domain)
	fmt.Fprintf(&b, "Website Title: %s\n", title)
	fmt.Fprintf(&b, "Website Description: %s\n", desc)
	if len(h1s) > 0 {
		fmt.Fprintf(&b, "Headlines: %s\n", strings.Join(h1s, " | "))
	}
	fmt.Fprintf(&b, "\nCRITICAL: Only return information about THIS specific product (%q at %s). "+
		"If you cannot find reliable information, respond with %s rather than guessing or "+
		"returning data about a different product or company.\n", s.Name, domain, InsufficientData)
	b.WriteString("=== END IDENTITY ===")
	return b.String()
}

// General asks for a comprehensive product overview.
func General(s Subject, snap *scraper.Snapshot) string {
	var features string
	if snap != nil && len(snap.FeaturesPage.Sections) > 0 {
		features = "Known features from their website: " + strings.Join(snap.FeaturesPage.Sections, ", ") + "\n\n"
	}

	return ProductIdentity(s, snap) + "\n\n" + features + `Provide a COMPREHENSIVE analysis covering:

1. **Product Overview**: Core purpose, what problem it solves, how it works
2. **Key Features**: List 5-10 specific features with descriptions. Note which are AI-powered.
3. **Target Audience**: Company sizes (startup/SMB/mid-market/enterprise), team roles, industries
4. **Integrations**: CRM, email, Slack, Salesforce, HubSpot, etc. Be specific.
5. **AI/Automation**: Is it AI-native, AI-enhanced, or traditional? What AI capabilities?
6. **Company Background**: Founded year, headquarters, employee count, funding, key people
7. **Unique Selling Points**: What differentiates it from alternatives?
8. **Recent Developments**: New features, funding rounds, acquisitions in the last 12 months

Be specific and factual. Include names, numbers, and dates where available.`
}

// Pricing asks for plan and price details.
func Pricing(s Subject, snap *scraper.Snapshot, generalContext string) string {
	hint := "No pricing page found on their website."
	if snap != nil && snap.PricingPage.Found && snap.PricingPage.Text != "" {
		hint = "Pricing page text from their website: " + truncate(snap.PricingPage.Text, maxPricingHint)
	}

	return ProductIdentity(s, snap) + "\n\n" + contextBlock(generalContext) + hint + "\n\n" +
		fmt.Sprintf("Search the product's own website (%s) and pricing comparison sites for pricing information.", s.URL) + `

Provide SPECIFIC pricing details:
1. **Pricing Model**: subscription, usage-based, one-time, hybrid?
2. **Tier Names and Prices**: List each plan with exact dollar amounts (monthly/annual)
3. **Per-unit pricing**: per user, per seat, per contact, flat rate?
4. **Free Tier/Trial**: Is there a free plan? Free trial? How long?
5. **Contract Terms**: Monthly, annual, multi-year? Discounts for annual?
6. **Enterprise Pricing**: Custom/contact sales? Starting point if known?
7. **Notable Inclusions/Exclusions**: What do higher tiers unlock?

Focus on exact dollar amounts and plan names. If pricing is not publicly available, say so explicitly. Do not guess.`
}

// Reviews asks for review-platform sentiment.
func Reviews(s Subject, snap *scraper.Snapshot, generalContext string) string {
	return ProductIdentity(s, snap) + "\n\n" + contextBlock(generalContext) +
		fmt.Sprintf("Search specifically on G2.com, Capterra.com, TrustRadius.com, and Reddit.com for reviews of %q.\n\n", s.Name) +
		"If this product has no listings on review platforms, say " + InsufficientData + ` rather than fabricating data.

Provide:
1. **Review Scores**: G2 rating, Capterra rating, TrustRadius score (with review counts). Only include if you find an actual listing on the platform.
2. **Common Praise**: What do users consistently love? List 3-5 themes with examples.
3. **Common Complaints**: What frustrates users? List 3-5 themes with examples.
4. **Notable User Quotes**: 3-5 specific quotes (positive and negative) with source
5. **Overall Sentiment**: Is it generally positive, mixed, or negative?
6. **Support Quality**: How do users rate customer support?
7. **Ease of Use**: Common feedback on UX/onboarding

Include specific quotes and cite sources (G2, Capterra, Reddit, etc.). If no reviews exist on these platforms for this product, explicitly state that.`
}

// Competitors asks for the competitive landscape.
func Competitors(s Subject, snap *scraper.Snapshot, generalContext string) string {
	n := s.Name
	return ProductIdentity(s, snap) + "\n\n" + contextBlock(generalContext) +
		fmt.Sprintf("Search G2.com/compare pages and alternative.me for competitive comparisons of %q.\n\n", n) +
		"Provide:\n" +
		"1. **Direct Competitors**: Tools that solve the same problem for the same audience (3-5)\n" +
		"2. **Indirect Competitors**: Broader platforms that include similar features (2-3)\n" +
		"3. **Adjacent Tools**: Complementary tools often used alongside (2-3)\n" +
		fmt.Sprintf("4. **For each competitor**: Name, URL, key differentiators vs %s, weaknesses vs %s\n", n, n) +
		fmt.Sprintf("5. **Market Positioning**: Where does %s sit? (budget, mid-market, enterprise?)\n", n) +
		fmt.Sprintf("6. **Competitive Advantages**: What does %s do better than alternatives?\n", n) +
		fmt.Sprintf("7. **Competitive Weaknesses**: Where do alternatives outperform %s?\n\n", n) +
		"Be specific about HOW competitors differ, not just that they exist."
}

// ForFacet dispatches to the facet builder. generalContext is ignored for
// the general facet.
func ForFacet(f Facet, s Subject, snap *scraper.Snapshot, generalContext string) string {
	switch f {
	case FacetPricing:
		return Pricing(s, snap, generalContext)
	case FacetReviews:
		return Reviews(s, snap, generalContext)
	case FacetCompetitors:
		return Competitors(s, snap, generalContext)
	default:
		return General(s, snap)
	}
}

// Consolidation asks the fast model to cross-reference every facet result.
// Results are listed in Facets() order regardless of input order.
func Consolidation(s Subject, snap *scraper.Snapshot, results []FacetResult) string {
	var sections []string
	if snap != nil {
		sections = append(sections, "SCRAPED PAGES: "+strings.Join(snap.FoundPages(), ", "))
		if snap.Homepage.Description != "" {
			sections = append(sections, "HOMEPAGE: "+snap.Homepage.Description)
		}
	}

	byFacet := make(map[Facet]FacetResult, len(results))
	for _, r := range results {
		byFacet[r.Facet] = r
	}
	for _, f := range Facets() {
		r, ok := byFacet[f]
		if !ok || r.Response == "" {
			continue
		}
		label := strings.ToUpper(string(f))
		if r.Insufficient() {
			label += " (INSUFFICIENT DATA)"
		}
		sections = append(sections, fmt.Sprintf("\n--- RESEARCH %s ---\n%s", label, r.Response))
	}

	return fmt.Sprintf("You are consolidating research data for the GTM tool %q (%s).\n\n", s.Name, s.URL) +
		fmt.Sprintf("Below is all data collected from website scraping and %d web research queries. Your job is to:\n\n", len(results)) +
		`1. **Cross-reference**: Identify claims that appear in multiple sources (higher confidence)
2. **Flag contradictions**: Where sources disagree (e.g., different pricing, conflicting feature claims)
3. **Identify gaps**: What important information is still missing or unverified?
4. **Assess completeness**: Rate data quality for: features, pricing, reviews, competitors, company info

` + strings.Join(sections, "\n") + `

Output ONLY valid JSON:
{
  "verified_claims": ["claims confirmed by 2+ sources"],
  "contradictions": [{"topic": "...", "source_a": "...", "source_b": "...", "details": "..."}],
  "gaps": ["missing information that would be valuable"],
  "completeness": {
    "features": "high|medium|low",
    "pricing": "high|medium|low",
    "reviews": "high|medium|low",
    "competitors": "high|medium|low",
    "company_info": "high|medium|low"
  },
  "notes": "any other observations"
}`
}

func contextBlock(generalContext string) string {
	if generalContext == "" {
		return ""
	}
	return "CONTEXT FROM GENERAL RESEARCH:\n" + generalContext + "\n\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
