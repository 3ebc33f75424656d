// Package content renders drafts into the markdown documents committed to
// the site repository, and parses them back.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

const (
	dateLayout       = "2006-01-02"
	defaultName      = "Unnamed Tool"
	defaultPricing   = "freemium"
	frontmatterFence = "---"
)

// ErrNoFrontmatter is returned by ParseDocument when the document does not
// open with a fenced front-matter block.
var ErrNoFrontmatter = errors.New("document has no front-matter block")

type field struct {
	key   string
	value any
}

// FilePath returns the repository path of the document for slug.
func FilePath(contentDir, slug string) string {
	return path.Join(contentDir, slug+".md")
}

// BuildDocument renders d as "---\n{front-matter}---\n\n{body}\n". Fields
// are written in a fixed order; optional empty fields are omitted.
func BuildDocument(d *domain.Draft, now time.Time) string {
	var b strings.Builder
	b.WriteString(frontmatterFence + "\n")
	for _, f := range buildFields(d, now) {
		b.WriteString(formatField(f))
		b.WriteByte('\n')
	}
	b.WriteString(frontmatterFence + "\n\n")
	b.WriteString(strings.TrimRight(d.Content(), "\n"))
	b.WriteByte('\n')
	return b.String()
}

func buildFields(d *domain.Draft, now time.Time) []field {
	fm := d.Frontmatter
	if fm == nil {
		fm = domain.JSONMap{}
	}

	primary, categories := ResolveCategories(fm.String("primaryCategory"), fm.Strings("categories"))

	fields := []field{
		{"name", firstNonEmpty(fm.String("name"), d.NameValue(), defaultName)},
		{"description", fm.String("description")},
		{"url", firstNonEmpty(fm.String("url"), d.URL)},
		{"primaryCategory", primary},
		{"categories", categories},
		{"aiAutomation", stringsOrEmpty(fm.Strings("aiAutomation"))},
		{"pricingTags", stringsOrEmpty(fm.Strings("pricingTags"))},
		{"companySize", stringsOrEmpty(fm.Strings("companySize"))},
		{"integrations", stringsOrEmpty(fm.Strings("integrations"))},
		{"pricing", firstNonEmpty(fm.String("pricing"), defaultPricing)},
	}
	if v := fm.String("priceNote"); v != "" {
		fields = append(fields, field{"priceNote", v})
	}
	fields = append(fields,
		field{"featured", boolOr(fm["featured"], false)},
		field{"publishedAt", publishedAt(fm["publishedAt"], d.PublishedAt, now)},
	)
	if d.Status == domain.StatusPublished {
		fields = append(fields, field{"updatedAt", now.UTC().Format(dateLayout)})
	}
	fields = append(fields,
		field{"upvotes", numberOr(fm["upvotes"])},
		field{"comments", numberOr(fm["comments"])},
		field{"views", numberOr(fm["views"])},
		field{"isNew", boolOr(fm["isNew"], true)},
		field{"isVerified", boolOr(fm["isVerified"], false)},
		field{"hasDeal", boolOr(fm["hasDeal"], false)},
		field{"isDiscontinued", boolOr(fm["isDiscontinued"], false)},
	)
	if v := fm.String("logo"); v != "" {
		fields = append(fields, field{"logo", v})
	}
	if v := fm.String("dealDescription"); v != "" {
		fields = append(fields, field{"dealDescription", v})
	}
	return fields
}

// publishedAt keeps an existing front-matter date, then the draft's first
// publication time, then today.
func publishedAt(raw any, draftPublished *time.Time, now time.Time) string {
	if s, ok := raw.(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC().Format(dateLayout)
		}
		if t, err := time.Parse(dateLayout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	if draftPublished != nil && !draftPublished.IsZero() {
		return draftPublished.UTC().Format(dateLayout)
	}
	return now.UTC().Format(dateLayout)
}

func formatField(f field) string {
	switch v := f.value.(type) {
	case string:
		return f.key + ": " + quote(v)
	case bool:
		return f.key + ": " + strconv.FormatBool(v)
	case float64:
		return f.key + ": " + strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = quote(s)
		}
		return f.key + ": [" + strings.Join(quoted, ", ") + "]"
	default:
		return f.key + ": " + quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func boolOr(raw any, def bool) bool {
	if b, ok := raw.(bool); ok {
		return b
	}
	return def
}

func numberOr(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err == nil {
			return f
		}
	}
	return 0
}

// Document is a parsed markdown document.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ParseDocument splits a fenced document and decodes its front-matter as YAML.
func ParseDocument(doc string) (*Document, error) {
	rest, ok := strings.CutPrefix(doc, frontmatterFence+"\n")
	if !ok {
		return nil, ErrNoFrontmatter
	}

	raw, body, ok := strings.Cut(rest, "\n"+frontmatterFence+"\n")
	if !ok {
		return nil, ErrNoFrontmatter
	}

	fm := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("parse front-matter: %w", err)
	}

	return &Document{
		Frontmatter: fm,
		Body:        strings.TrimSpace(body),
	}, nil
}
