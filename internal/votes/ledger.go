// Package votes keeps one vote per (tool, voter) pair and a counter per
// tool, with a Redis read-through cache for counts.
package votes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

// MaxCountSlugs caps a single Counts call.
const MaxCountSlugs = 100

// ErrTooManySlugs rejects a Counts call above MaxCountSlugs.
var ErrTooManySlugs = fmt.Errorf("%w: at most %d slugs per request", domain.ErrValidation, MaxCountSlugs)

// Repository is the vote and counter storage.
type Repository interface {
	HasVoted(ctx context.Context, slug, voterHash string) (bool, error)
	InsertVote(ctx context.Context, slug, voterHash string, at time.Time) (InsertResult, error)
	DeleteVote(ctx context.Context, slug, voterHash string) error
	Count(ctx context.Context, slug string) (int64, error)
	Increment(ctx context.Context, slug string, at time.Time) (int64, error)
	Counts(ctx context.Context, slugs []string) (map[string]int64, error)
}

// CountCache caches counters. Failures are logged and never surfaced.
type CountCache interface {
	Get(ctx context.Context, slugs []string) (map[string]int64, error)
	Set(ctx context.Context, counts map[string]int64) error
}

// Result is the outcome of a vote.
type Result struct {
	Upvotes      int64 `json:"upvotes"`
	AlreadyVoted bool  `json:"alreadyVoted"`
}

// Ledger records votes.
type Ledger struct {
	repo    Repository
	cache   CountCache
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLedger creates a Ledger. cache and m may be nil.
func NewLedger(repo Repository, cache CountCache, log logger.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{repo: repo, cache: cache, log: log, metrics: m, now: time.Now}
}

// Vote records a vote for slug by fingerprint. A repeat vote returns the
// current count with AlreadyVoted set and changes nothing.
func (l *Ledger) Vote(ctx context.Context, slug, fingerprint string) (Result, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Result{}, domain.NewValidationError("slug", "slug is required")
	}

	voted, err := l.repo.HasVoted(ctx, slug, fingerprint)
	if err != nil {
		l.metrics.ObserveVote(metrics.OutcomeFailure)
		return Result{}, err
	}
	if voted {
		return l.alreadyVoted(ctx, slug)
	}

	now := l.now().UTC()
	inserted, err := l.repo.InsertVote(ctx, slug, fingerprint, now)
	if err != nil {
		l.metrics.ObserveVote(metrics.OutcomeFailure)
		return Result{}, err
	}
	if inserted == AlreadyExists {
		return l.alreadyVoted(ctx, slug)
	}

	count, err := l.repo.Increment(ctx, slug, now)
	if err != nil {
		if delErr := l.repo.DeleteVote(ctx, slug, fingerprint); delErr != nil {
			l.log.Error("Failed to roll back vote after counter failure",
				logger.String("slug", slug),
				logger.Error(delErr),
			)
		}
		l.metrics.ObserveVote(metrics.OutcomeFailure)
		return Result{}, fmt.Errorf("increment vote count: %w", err)
	}

	l.writeCache(ctx, map[string]int64{slug: count})
	l.metrics.ObserveVote(metrics.OutcomeSuccess)
	return Result{Upvotes: count}, nil
}

func (l *Ledger) alreadyVoted(ctx context.Context, slug string) (Result, error) {
	count, err := l.repo.Count(ctx, slug)
	if err != nil {
		l.metrics.ObserveVote(metrics.OutcomeFailure)
		return Result{}, err
	}
	l.metrics.ObserveVote(metrics.OutcomeDuplicate)
	return Result{Upvotes: count, AlreadyVoted: true}, nil
}

// CurrentCount returns the counter for slug without voting.
func (l *Ledger) CurrentCount(ctx context.Context, slug string) (int64, error) {
	counts, err := l.Counts(ctx, []string{slug})
	if err != nil {
		return 0, err
	}
	return counts[slug], nil
}

// Counts returns a count for every slug, 0 when none is stored. Cached
// values are used first; misses are read from the database and written
// back to the cache.
func (l *Ledger) Counts(ctx context.Context, slugs []string) (map[string]int64, error) {
	if len(slugs) > MaxCountSlugs {
		return nil, ErrTooManySlugs
	}

	out := make(map[string]int64, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	misses := slugs
	if l.cache != nil {
		cached, err := l.cache.Get(ctx, slugs)
		if err != nil {
			l.log.Warn("Vote count cache read failed", logger.Error(err))
		}
		misses = make([]string, 0, len(slugs))
		for _, slug := range slugs {
			if n, ok := cached[slug]; ok {
				out[slug] = n
				continue
			}
			misses = append(misses, slug)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	stored, err := l.repo.Counts(ctx, misses)
	if err != nil {
		return nil, err
	}
	fill := make(map[string]int64, len(misses))
	for _, slug := range misses {
		fill[slug] = stored[slug]
		out[slug] = stored[slug]
	}
	l.writeCache(ctx, fill)
	return out, nil
}

func (l *Ledger) writeCache(ctx context.Context, counts map[string]int64) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, counts); err != nil {
		l.log.Warn("Vote count cache write failed", logger.Error(err))
	}
}

// ParseSlugs splits a comma-separated slug list, dropping blanks and
// duplicates.
func ParseSlugs(raw string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		slug := strings.TrimSpace(part)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}
