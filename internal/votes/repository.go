package votes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/database"
)

// InsertResult tells whether InsertVote stored a new vote.
type InsertResult int

const (
	// Inserted means the vote row was created.
	Inserted InsertResult = iota + 1
	// AlreadyExists means the (slug, voter) pair had voted before.
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository stores votes in tool_votes and counters in tool_upvotes.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// HasVoted reports whether voterHash already voted for slug.
func (r *PostgresRepository) HasVoted(ctx context.Context, slug, voterHash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tool_votes WHERE tool_slug = $1 AND voter_hash = $2)`
	if err := r.db.GetContext(ctx, &exists, query, slug, voterHash); err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return exists, nil
}

// InsertVote stores one vote. The unique (tool_slug, voter_hash) constraint
// turns a concurrent duplicate into AlreadyExists.
func (r *PostgresRepository) InsertVote(ctx context.Context, slug, voterHash string, at time.Time) (InsertResult, error) {
	query := `INSERT INTO tool_votes (tool_slug, voter_hash, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, slug, voterHash, at); err != nil {
		if database.IsUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert vote: %w", err)
	}
	return Inserted, nil
}

// DeleteVote removes one vote row.
func (r *PostgresRepository) DeleteVote(ctx context.Context, slug, voterHash string) error {
	query := `DELETE FROM tool_votes WHERE tool_slug = $1 AND voter_hash = $2`
	if _, err := r.db.ExecContext(ctx, query, slug, voterHash); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

// Count returns the counter for slug, 0 when no row exists.
func (r *PostgresRepository) Count(ctx context.Context, slug string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT vote_count FROM tool_upvotes WHERE tool_slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read vote count: %w", err)
	}
	return count, nil
}

// Increment adds one to the counter for slug and returns the new value.
// A missing row is created at 1; losing that insert race falls back to
// the update.
func (r *PostgresRepository) Increment(ctx context.Context, slug string, at time.Time) (int64, error) {
	count, err := r.bump(ctx, slug, at)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	insert := `INSERT INTO tool_upvotes (tool_slug, vote_count, updated_at) VALUES ($1, 1, $2)`
	if _, err := r.db.ExecContext(ctx, insert, slug, at); err != nil {
		if database.IsUniqueViolation(err) {
			return r.bump(ctx, slug, at)
		}
		return 0, fmt.Errorf("failed to create vote counter: %w", err)
	}
	return 1, nil
}

func (r *PostgresRepository) bump(ctx context.Context, slug string, at time.Time) (int64, error) {
	query := `
		UPDATE tool_upvotes
		SET vote_count = vote_count + 1, updated_at = $2
		WHERE tool_slug = $1
		RETURNING vote_count`

	var count int64
	err := r.db.GetContext(ctx, &count, query, slug, at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment vote count: %w", err)
	}
	return count, nil
}

// Counts returns the stored counters for slugs. Slugs without a row are
// absent from the map.
func (r *PostgresRepository) Counts(ctx context.Context, slugs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	query, args, err := psql.Select("tool_slug", "vote_count").
		From("tool_upvotes").
		Where(sq.Eq{"tool_slug": slugs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows := []struct {
		Slug  string `db:"tool_slug"`
		Count int64  `db:"vote_count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read vote counts: %w", err)
	}
	for _, row := range rows {
		out[row.Slug] = row.Count
	}
	return out, nil
}
