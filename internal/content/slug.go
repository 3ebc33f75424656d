package content

import (
	"net/url"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of non-alphanumerics into
// one hyphen and trims leading and trailing hyphens.
func Slugify(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// HostLabel returns the first label of rawURL's hostname without a leading
// "www.", e.g. "https://www.example.io/x" -> "example".
func HostLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	return label
}

// Domain returns rawURL's hostname without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// DeriveSlug slugifies name, falling back to the URL's host label.
func DeriveSlug(name, rawURL string) string {
	if s := Slugify(name); s != "" {
		return s
	}
	return Slugify(HostLabel(rawURL))
}
