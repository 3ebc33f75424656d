// Package domain holds the draft model, its lifecycle and the error
// taxonomy shared by the research, publish and vote components.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status is the lifecycle state of a draft.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResearching Status = "researching"
	StatusDraft       Status = "draft"
	StatusApproved    Status = "approved"
	StatusPublished   Status = "published"
	StatusRejected    Status = "rejected"
)

// Statuses lists every known status.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusResearching, StatusDraft,
		StatusApproved, StatusPublished, StatusRejected,
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Publishable reports whether a draft in this status may be published.
func (s Status) Publishable() bool {
	return s == StatusApproved || s == StatusDraft || s == StatusPublished
}

// Draft tracks one candidate tool review through research and publication.
type Draft struct {
	ID               uuid.UUID      `db:"id"                json:"id"`
	URL              string         `db:"url"               json:"url"`
	Name             *string        `db:"name"              json:"name"`
	Slug             *string        `db:"slug"              json:"slug"`
	ExtraSources     pq.StringArray `db:"extra_sources"     json:"extra_sources"`
	ResearchData     JSONMap        `db:"research_data"     json:"research_data"`
	GeneratedContent *string        `db:"generated_content" json:"generated_content"`
	Frontmatter      JSONMap        `db:"frontmatter"       json:"frontmatter"`
	LogoURL          *string        `db:"logo_url"          json:"logo_url"`
	Screenshots      pq.StringArray `db:"screenshots"       json:"screenshots"`
	CustomSections   JSONMap        `db:"custom_sections"   json:"custom_sections"`
	Status           Status         `db:"status"            json:"status"`
	ErrorMessage     *string        `db:"error_message"     json:"error_message"`
	PublishedAt      *time.Time     `db:"published_at"      json:"published_at"`
	CreatedAt        time.Time      `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"        json:"updated_at"`
}

// NameValue returns the draft name or "".
func (d *Draft) NameValue() string {
	return deref(d.Name)
}

// SlugValue returns the draft slug or "".
func (d *Draft) SlugValue() string {
	return deref(d.Slug)
}

// Content returns the generated markdown body or "".
func (d *Draft) Content() string {
	return deref(d.GeneratedContent)
}

// Ptr returns a pointer to v, or nil when v is the zero string.
func Ptr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
