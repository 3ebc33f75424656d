package prompts

import (
	"fmt"
	"strings"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
)

// Style shapes the written review.
type Style struct {
	Tone      string `yaml:"tone"`
	Emphasize string `yaml:"emphasize"`
	Avoid     string `yaml:"avoid"`
	WordCount int    `yaml:"word_count"`
	Template  string `yaml:"template"`
}

// Default style values.
const (
	DefaultTone      = "Professional but conversational."
	DefaultEmphasize = "Real user feedback and practical use cases."
	DefaultAvoid     = "Overly promotional language."
	DefaultWordCount = 1500
)

// WithDefaults fills unset fields.
func (s Style) WithDefaults() Style {
	if s.Tone == "" {
		s.Tone = DefaultTone
	}
	if s.Emphasize == "" {
		s.Emphasize = DefaultEmphasize
	}
	if s.Avoid == "" {
		s.Avoid = DefaultAvoid
	}
	if s.WordCount <= 0 {
		s.WordCount = DefaultWordCount
	}
	return s
}

const synthesisSystemPrompt = `You are a tech product reviewer for a GTM tools directory. Write accurate, balanced reviews grounded only in the research notes you are given. Keep every claim traceable to those notes; where the notes say INSUFFICIENT_DATA, say the information is not available instead of inventing it. Always return the JSON metadata block before the review body.`

// SynthesisSystem returns the reviewer system instruction for the quality
// model.
func SynthesisSystem() string {
	return synthesisSystemPrompt
}

// Notes is the fast-review output handed to synthesis.
type Notes struct {
	Facets        []FacetResult
	Consolidation string
}

// Synthesis builds the review-writing prompt for the quality model.
func Synthesis(s Subject, snap *scraper.Snapshot, notes Notes, style Style) string {
	style = style.WithDefaults()

	name := s.Name
	if name == "" {
		name = "(To be determined from research)"
	}

	return fmt.Sprintf(`You are a tech product reviewer writing a comprehensive review of a software tool.

TOOL INFORMATION:
URL: %s
Name: %s

RESEARCH DATA:
%s

WRITING GUIDELINES:
- Tone: %s
- Emphasize: %s
- Avoid: %s
- Target word count: %d words

TEMPLATE STRUCTURE:
%s

FRONTMATTER TO EXTRACT:
Based on your research, extract the following into a JSON object:
- name: Tool name
- slug: URL-friendly slug (lowercase, hyphens)
- description: One-line description for SEO (under 160 chars)
- pricing: One of "free", "freemium", "paid", "trial"
- priceNote: Brief pricing summary (e.g., "Free tier, paid from $10/mo")
- category: Primary category
- tags: Array of relevant tags (3-5)

OUTPUT FORMAT:
First, output the frontmatter as a JSON code block:
`+"```json"+`
{
  "name": "...",
  "slug": "...",
  "description": "...",
  "pricing": "...",
  "priceNote": "...",
  "category": "...",
  "tags": ["...", "..."]
}
`+"```"+`

Then, output the review content in Markdown format following the template structure above.

Write the review now:`,
		s.URL, name, researchSummary(snap, notes),
		style.Tone, style.Emphasize, style.Avoid, style.WordCount, style.Template)
}

func researchSummary(snap *scraper.Snapshot, notes Notes) string {
	var parts []string
	add := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		parts = append(parts, "### "+strings.ToUpper(title), truncate(body, maxSynthesisSection), "")
	}

	if snap != nil {
		add("website", websiteSummary(snap))
	}
	for _, f := range Facets() {
		for _, r := range notes.Facets {
			if r.Facet == f {
				add(string(f), r.Response)
			}
		}
	}
	add("consolidation", notes.Consolidation)

	if len(parts) == 0 {
		return "No research data gathered yet."
	}
	return strings.Join(parts, "\n")
}

func websiteSummary(snap *scraper.Snapshot) string {
	var lines []string
	if name := snap.SiteName(); name != "" {
		lines = append(lines, "Name: "+name)
	}
	if snap.Homepage.Description != "" {
		lines = append(lines, "Description: "+snap.Homepage.Description)
	}
	if len(snap.FeaturesPage.Sections) > 0 {
		lines = append(lines, "Features:")
		for _, f := range snap.FeaturesPage.Sections {
			lines = append(lines, "  - "+f)
		}
	}
	if len(snap.PricingPage.Prices) > 0 {
		lines = append(lines, "Pricing: "+strings.Join(snap.PricingPage.Prices, " | "))
	}
	for _, p := range snap.ExtraSources {
		if p.Found && p.Text != "" {
			lines = append(lines, "Source "+p.URL+": "+truncate(p.Text, maxPricingHint))
		}
	}
	return strings.Join(lines, "\n")
}
