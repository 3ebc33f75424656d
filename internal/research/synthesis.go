package research

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/content"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
)

const (
	jsonFenceOpen = "```json"
	fence         = "```"
	logoPathFmt   = "/logos/%s.png"
)

var titleSeparators = []string{" | ", " - ", " \u2013 ", " \u2014 ", ": "}

// Synthesis is the parsed quality-model output.
type Synthesis struct {
	Frontmatter map[string]any
	Body        string
}

// ParseSynthesis splits a response into the fenced JSON front-matter block
// and the markdown body that follows it. A missing or malformed block gives
// empty front-matter; without a block the whole response is the body.
func ParseSynthesis(response string) Synthesis {
	out := Synthesis{Frontmatter: map[string]any{}}

	start := strings.Index(response, jsonFenceOpen)
	if start == -1 {
		out.Body = stripFrontmatter(response)
		return out
	}
	rest := response[start+len(jsonFenceOpen):]
	end := strings.Index(rest, fence)
	if end == -1 {
		out.Body = stripFrontmatter(response)
		return out
	}

	var fm map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &fm); err == nil && fm != nil {
		out.Frontmatter = fm
	}
	out.Body = stripFrontmatter(rest[end+len(fence):])
	return out
}

// stripFrontmatter drops a stray "---" block models sometimes prepend.
func stripFrontmatter(body string) string {
	body = strings.TrimSpace(body)
	if rest, ok := strings.CutPrefix(body, "---"); ok {
		if _, after, found := strings.Cut(rest, "---"); found {
			return strings.TrimSpace(after)
		}
	}
	return body
}

// identity picks the display name and slug. The name comes from the model,
// then the draft, then the scraped site title. The slug never comes from the
// scraped title: it is the model's slug or name, then the draft's slug or
// name, then the URL's host label.
func identity(modelFM map[string]any, d *domain.Draft, snap *scraper.Snapshot) (name, slug string) {
	modelName := stringField(modelFM, "name")
	name = firstString(modelName, d.NameValue(), siteTitle(snap.SiteName()))

	slug = firstString(
		content.Slugify(stringField(modelFM, "slug")),
		content.Slugify(modelName),
		d.SlugValue(),
	)
	if slug == "" {
		slug = content.DeriveSlug(d.NameValue(), d.URL)
	}
	return name, slug
}

// siteTitle keeps the product part of a page title such as
// "Example | Product analytics for teams".
func siteTitle(title string) string {
	for _, sep := range titleSeparators {
		if head, _, found := strings.Cut(title, sep); found {
			title = head
		}
	}
	return strings.TrimSpace(title)
}

// mergeFrontmatter layers scrape-derived defaults over the existing
// front-matter, then the model's output over both.
func mergeFrontmatter(
	existing domain.JSONMap,
	modelFM map[string]any,
	d *domain.Draft,
	snap *scraper.Snapshot,
	name, slug string,
) domain.JSONMap {
	out := domain.JSONMap{}
	maps.Copy(out, existing)

	out["url"] = d.URL
	out["isNew"] = true
	out["featured"] = false
	if desc := snap.Homepage.Description; desc != "" {
		out["description"] = desc
	}
	if logo := logoFor(snap.Logo, slug); logo != "" {
		out["logo"] = logo
	}

	for key, value := range modelFM {
		switch key {
		case "slug", "category", "tags":
		case "pricing":
			if p := normalizePricing(value); p != "" {
				out["pricing"] = p
			}
		default:
			if value != nil {
				out[key] = value
			}
		}
	}

	if category := stringField(modelFM, "category"); content.IsValidCategory(category) {
		out["primaryCategory"] = category
	}
	if tags := stringsField(modelFM, "tags"); len(tags) > 0 {
		categories := make([]string, 0, len(tags))
		for _, tag := range tags {
			if c := content.Slugify(tag); content.IsValidCategory(c) {
				categories = append(categories, c)
			}
		}
		if len(categories) > 0 {
			out["categories"] = categories
		}
	}

	if name != "" {
		out["name"] = name
	}
	return out
}

// logoFor uses a clearbit logo directly and otherwise points at the
// placeholder uploaded per slug.
func logoFor(logo *scraper.Logo, slug string) string {
	if logo != nil && logo.Source == scraper.LogoSourceClearbit {
		return logo.URL
	}
	if slug != "" {
		return fmt.Sprintf(logoPathFmt, slug)
	}
	return ""
}

// normalizePricing maps free text onto the pricing enumeration.
func normalizePricing(raw any) string {
	s, _ := raw.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case s == "free", s == "freemium", s == "paid", s == "trial":
		return s
	case strings.Contains(s, "freemium"), strings.Contains(s, "free tier"):
		return "freemium"
	case strings.Contains(s, "trial"):
		return "trial"
	case strings.Contains(s, "free"):
		return "free"
	case strings.Contains(s, "paid"), strings.Contains(s, "enterprise"), strings.Contains(s, "$"):
		return "paid"
	default:
		return ""
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func stringsField(m map[string]any, key string) []string {
	return domain.JSONMap(m).Strings(key)
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
