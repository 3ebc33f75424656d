// Package publisher commits approved drafts to the site repository, either
// one file through the contents API or many files as a single commit.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/content"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/github"
)

const (
	modeSingle = "single"
	modeBatch  = "batch"

	upstreamGitHub = "github"
)

// DraftStore is the part of the draft repository the publisher needs.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Draft, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Repository is the remote content store.
type Repository interface {
	GetFile(ctx context.Context, path string) (*github.File, error)
	PutFile(ctx context.Context, req github.PutFileRequest) (*github.PutFileResult, error)
	GetRef(ctx context.Context) (string, error)
	GetCommit(ctx context.Context, sha string) (*github.Commit, error)
	CreateBlob(ctx context.Context, content string) (string, error)
	CreateTree(ctx context.Context, baseTree string, entries []github.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, message, tree string, parents []string) (*github.Commit, error)
	UpdateRef(ctx context.Context, sha string) error
}

// Publisher renders drafts and commits them.
type Publisher struct {
	store      DraftStore
	repo       Repository
	contentDir string
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a Publisher writing under contentDir. m may be nil.
func New(store DraftStore, repo Repository, contentDir string, log logger.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		store:      store,
		repo:       repo,
		contentDir: contentDir,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for dates and published_at.
func (p *Publisher) WithClock(now func() time.Time) *Publisher {
	p.now = now
	return p
}

// Result is the outcome of a single publish.
type Result struct {
	Draft     *domain.Draft `json:"draft"`
	FilePath  string        `json:"filePath"`
	CommitSHA string        `json:"commitSha"`
	HTMLURL   string        `json:"htmlUrl,omitempty"`
	// Degraded marks a commit that landed while the draft's status update
	// failed; Warning carries the cause.
	Degraded bool   `json:"degraded,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// Publish commits one draft through the contents API. Validation runs
// before any remote call; a remote failure leaves the draft untouched. A
// status update failure after the commit returns a degraded Result, not an
// error.
func (p *Publisher) Publish(ctx context.Context, id uuid.UUID) (*Result, error) {
	d, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validate(d); err != nil {
		p.metrics.ObservePublish(modeSingle, metrics.OutcomeFailure)
		return nil, err
	}

	now := p.now()
	filePath := content.FilePath(p.contentDir, d.SlugValue())
	doc := content.BuildDocument(d, now)

	var sha string
	existing, err := p.repo.GetFile(ctx, filePath)
	switch {
	case err == nil:
		sha = existing.SHA
	case errors.Is(err, github.ErrNotFound):
	default:
		p.metrics.ObservePublish(modeSingle, metrics.OutcomeFailure)
		return nil, domain.Upstream(upstreamGitHub, err)
	}

	put, err := p.repo.PutFile(ctx, github.PutFileRequest{
		Path:    filePath,
		Content: doc,
		Message: "Add tool review: " + displayName(d),
		SHA:     sha,
	})
	if err != nil {
		p.metrics.ObservePublish(modeSingle, metrics.OutcomeFailure)
		return nil, domain.Upstream(upstreamGitHub, err)
	}

	if err := p.store.MarkPublished(ctx, []uuid.UUID{d.ID}, now); err != nil {
		p.metrics.ObservePublish(modeSingle, metrics.OutcomeDegraded)
		p.log.Error("File committed but draft status update failed",
			logger.String("draft_id", d.ID.String()),
			logger.String("commit_sha", put.CommitSHA),
			logger.Error(err),
		)
		return &Result{
			Draft:     d,
			FilePath:  filePath,
			CommitSHA: put.CommitSHA,
			HTMLURL:   put.HTMLURL,
			Degraded:  true,
			Warning:   fmt.Sprintf("committed %s but the draft status update failed: %v", put.CommitSHA, err),
		}, nil
	}
	markLocal(d, now)

	p.metrics.ObservePublish(modeSingle, metrics.OutcomeSuccess)
	p.log.Info("Published tool review",
		logger.String("draft_id", d.ID.String()),
		logger.String("path", filePath),
		logger.String("commit_sha", put.CommitSHA),
		logger.Bool("update", sha != ""),
	)

	return &Result{
		Draft:     d,
		FilePath:  filePath,
		CommitSHA: put.CommitSHA,
		HTMLURL:   put.HTMLURL,
	}, nil
}

// validate checks that d can be rendered and committed.
func validate(d *domain.Draft) error {
	switch {
	case !d.Status.Publishable():
		return domain.NewValidationError("status",
			fmt.Sprintf("draft must be approved, draft or published to publish (current: %s)", d.Status))
	case d.SlugValue() == "":
		return domain.NewValidationError("slug", "draft has no slug")
	case d.Content() == "":
		return domain.NewValidationError("generated_content", "draft has no generated content")
	case d.Frontmatter == nil:
		return domain.NewValidationError("frontmatter", "draft has no frontmatter")
	}
	return nil
}

func displayName(d *domain.Draft) string {
	if name := d.Frontmatter.String("name"); name != "" {
		return name
	}
	if name := d.NameValue(); name != "" {
		return name
	}
	return d.SlugValue()
}

// markLocal mirrors MarkPublished on the in-memory copy.
func markLocal(d *domain.Draft, at time.Time) {
	d.Status = domain.StatusPublished
	d.UpdatedAt = at
	if d.PublishedAt == nil {
		t := at
		d.PublishedAt = &t
	}
}
