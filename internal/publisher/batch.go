package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/content"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

// MaxBatchSize caps the ids accepted by PublishBatch.
const MaxBatchSize = 50

const msgNoValidTools = "No valid tools to publish"

var (
	// ErrEmptyBatch rejects a batch with no ids.
	ErrEmptyBatch = fmt.Errorf("%w: ids must not be empty", domain.ErrValidation)
	// ErrBatchTooLarge rejects a batch above MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("%w: at most %d ids per batch", domain.ErrValidation, MaxBatchSize)
	// ErrNoValidDrafts is returned with the result when every draft failed validation.
	ErrNoValidDrafts = fmt.Errorf("%w: %s", domain.ErrValidation, msgNoValidTools)
)

// Verdict is the per-draft outcome of a batch.
type Verdict struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Warning  string    `json:"warning,omitempty"`
	FilePath string    `json:"filePath,omitempty"`
}

// BatchResult is the outcome of PublishBatch.
type BatchResult struct {
	Success        bool      `json:"success"`
	TotalRequested int       `json:"totalRequested"`
	TotalSucceeded int       `json:"totalSucceeded"`
	TotalFailed    int       `json:"totalFailed"`
	Results        []Verdict `json:"results"`
	CommitSHA      string    `json:"commitSha,omitempty"`
	Degraded       bool      `json:"degraded,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// PublishBatch commits every valid draft in ids as one commit. Invalid or
// unknown drafts get a failed verdict and do not block the rest. The
// returned result is non-nil whenever the ids passed the size checks.
func (p *Publisher) PublishBatch(ctx context.Context, ids []uuid.UUID) (*BatchResult, error) {
	switch {
	case len(ids) == 0:
		return nil, ErrEmptyBatch
	case len(ids) > MaxBatchSize:
		return nil, ErrBatchTooLarge
	}
	requested := len(ids)
	ids = dedupe(ids)

	found, err := p.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.Draft, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	now := p.now()
	result := &BatchResult{TotalRequested: requested, Results: make([]Verdict, 0, len(ids))}
	var files []stagedFile

	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			result.Results = append(result.Results, Verdict{ID: id, Error: "draft not found"})
			continue
		}
		v := Verdict{ID: id, Name: d.NameValue(), Slug: d.SlugValue()}
		if err := validate(d); err != nil {
			v.Error = err.Error()
			result.Results = append(result.Results, v)
			continue
		}
		v.FilePath = content.FilePath(p.contentDir, d.SlugValue())
		files = append(files, stagedFile{
			index:    len(result.Results),
			draftID:  id,
			path:     v.FilePath,
			document: content.BuildDocument(d, now),
		})
		result.Results = append(result.Results, v)
	}

	if len(files) == 0 {
		result.Error = msgNoValidTools
		result.TotalFailed = len(result.Results)
		p.metrics.ObservePublish(modeBatch, metrics.OutcomeFailure)
		return result, ErrNoValidDrafts
	}

	tc := &treeCommit{repo: p.repo, message: batchMessage(len(files)), files: files}
	commit, err := tc.run(ctx)
	if err != nil {
		msg := "GitHub commit failed: " + err.Error()
		for _, f := range files {
			result.Results[f.index].Error = msg
			result.Results[f.index].FilePath = ""
		}
		result.Error = msg
		result.TotalFailed = len(result.Results)
		p.metrics.ObservePublish(modeBatch, metrics.OutcomeFailure)
		p.log.Error("Batch commit failed",
			logger.String("stage", string(tc.stage)),
			logger.Int("files", len(files)),
			logger.Error(err),
		)
		return result, domain.Upstream(upstreamGitHub, err)
	}

	successIDs := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		result.Results[f.index].Success = true
		successIDs = append(successIDs, f.draftID)
	}
	result.Success = true
	result.CommitSHA = commit.SHA
	result.TotalSucceeded = len(files)
	result.TotalFailed = len(result.Results) - len(files)

	if err := p.store.MarkPublished(ctx, successIDs, now); err != nil {
		result.Degraded = true
		warning := "committed to GitHub but draft status update failed: " + err.Error()
		for _, f := range files {
			result.Results[f.index].Warning = warning
		}
		p.metrics.ObservePublish(modeBatch, metrics.OutcomeDegraded)
		p.log.Error("Batch committed but draft status update failed",
			logger.String("commit_sha", commit.SHA),
			logger.Int("drafts", len(successIDs)),
			logger.Error(err),
		)
		return result, nil
	}

	p.metrics.ObservePublish(modeBatch, metrics.OutcomeSuccess)
	p.log.Info("Published tool reviews in one commit",
		logger.String("commit_sha", commit.SHA),
		logger.Int("succeeded", result.TotalSucceeded),
		logger.Int("failed", result.TotalFailed),
	)
	return result, nil
}

func batchMessage(n int) string {
	if n == 1 {
		return "Add/update 1 tool review (bulk publish)"
	}
	return fmt.Sprintf("Add/update %d tool reviews (bulk publish)", n)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
