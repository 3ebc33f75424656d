// Package drafts stores tool review drafts in PostgreSQL.
package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/content"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/database"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

const (
	table = "tool_drafts"

	// DefaultListLimit is used when a list filter carries no limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single page.
	MaxListLimit = 200
)

var columns = []string{
	"id", "url", "name", "slug", "extra_sources", "research_data",
	"generated_content", "frontmatter", "logo_url", "screenshots",
	"custom_sections", "status", "error_message", "published_at",
	"created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CreateRequest is the input to Create.
type CreateRequest struct {
	URL          string   `json:"url"`
	Name         *string  `json:"name,omitempty"`
	Slug         *string  `json:"slug,omitempty"`
	ExtraSources []string `json:"extra_sources,omitempty"`
}

// Validate checks that URL is an absolute http(s) URL and that every extra
// source is one too.
func (r *CreateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.URL, validation.Required, is.URL, validation.By(httpScheme)),
		validation.Field(&r.ExtraSources, validation.Each(is.URL, validation.By(httpScheme))),
	)
}

func httpScheme(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	Status domain.Status
	Limit  int
	Offset int
}

// Store is the draft repository.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp rows.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create inserts a pending draft. Without an explicit slug one is derived
// from the name, then from the URL's host label.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*domain.Draft, error) {
	if err := req.Validate(); err != nil {
		return nil, toValidationError(err)
	}

	var slug *string
	switch {
	case req.Slug != nil:
		normalized := content.Slugify(*req.Slug)
		if normalized == "" {
			return nil, domain.NewValidationError("slug", "must contain letters or digits")
		}
		slug = &normalized
	default:
		var name string
		if req.Name != nil {
			name = *req.Name
		}
		if derived := content.DeriveSlug(name, req.URL); derived != "" {
			slug = &derived
		}
	}

	now := s.now().UTC()
	extra := pq.StringArray(req.ExtraSources)
	if extra == nil {
		extra = pq.StringArray{}
	}

	query := `
		INSERT INTO tool_drafts (id, url, name, slug, extra_sources, screenshots, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + strings.Join(columns, ", ")

	draft := &domain.Draft{}
	err := s.db.QueryRowxContext(ctx, query,
		uuid.New(), req.URL, req.Name, slug, extra, pq.StringArray{}, domain.StatusPending, now,
	).StructScan(draft)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("draft slug: %w", domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

// Get loads one draft.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error) {
	query := `SELECT ` + strings.Join(columns, ", ") + ` FROM tool_drafts WHERE id = $1`

	draft := &domain.Draft{}
	if err := s.db.GetContext(ctx, draft, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

// GetMany loads the drafts whose ids are given. Missing ids are absent
// from the result.
func (s *Store) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Draft, error) {
	if len(ids) == 0 {
		return []domain.Draft{}, nil
	}

	query, args, err := psql.Select(columns...).From(table).
		Where(sq.Eq{"id": idStrings(ids)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []domain.Draft{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get drafts: %w", err)
	}
	return out, nil
}

// List returns drafts newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.Draft, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset := max(f.Offset, 0)

	builder := psql.Select(columns...).From(table)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", f.Status))
		}
		builder = builder.Where(sq.Eq{"status": string(f.Status)})
	}
	query, args, err := builder.
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []domain.Draft{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return out, nil
}

// ListByStatus returns up to limit drafts in status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Draft, error) {
	query := `SELECT ` + strings.Join(columns, ", ") + `
		FROM tool_drafts
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	out := []domain.Draft{}
	if err := s.db.SelectContext(ctx, &out, query, string(status), limit); err != nil {
		return nil, fmt.Errorf("failed to list drafts by status: %w", err)
	}
	return out, nil
}

// Update applies fields to one draft and stamps updated_at.
func (s *Store) Update(ctx context.Context, id uuid.UUID, fields Fields) (*domain.Draft, error) {
	values, err := fields.normalize()
	if err != nil {
		return nil, err
	}
	values["updated_at"] = s.now().UTC()

	query, args, err := psql.Update(table).
		SetMap(values).
		Where(sq.Eq{"id": id.String()}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	draft := &domain.Draft{}
	if err := s.db.QueryRowxContext(ctx, query, args...).StructScan(draft); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.ErrNotFound
		case database.IsUniqueViolation(err):
			return nil, fmt.Errorf("slug: %w", domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return draft, nil
}

// Delete removes one draft.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tool_drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkPublished sets status published on every id. published_at keeps its
// first value.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	at = at.UTC()
	query, args, err := psql.Update(table).
		Set("status", string(domain.StatusPublished)).
		Set("published_at", sq.Expr("COALESCE(published_at, ?)", at)).
		Set("updated_at", at).
		Where(sq.Eq{"id": idStrings(ids)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark drafts published: %w", err)
	}
	return nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// toValidationError flattens ozzo errors into the first field error.
func toValidationError(err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, field := range sortedKeys(errs) {
			return domain.NewValidationError(field, errs[field].Error())
		}
	}
	return domain.NewValidationError("", err.Error())
}

func sortedKeys(errs validation.Errors) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
