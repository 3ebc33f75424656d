package votes_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/votes"
)

// memRepo mirrors the table constraints: one row per (slug, voter) and one
// counter per slug.
type memRepo struct {
	mu           sync.Mutex
	votes        map[[2]string]time.Time
	counts       map[string]int64
	incrementErr error
	countsCalls  int
}

func newMemRepo() *memRepo {
	return &memRepo{votes: map[[2]string]time.Time{}, counts: map[string]int64{}}
}

func (r *memRepo) HasVoted(_ context.Context, slug, voter string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.votes[[2]string{slug, voter}]
	return ok, nil
}

func (r *memRepo) InsertVote(_ context.Context, slug, voter string, at time.Time) (votes.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{slug, voter}
	if _, ok := r.votes[key]; ok {
		return votes.AlreadyExists, nil
	}
	r.votes[key] = at
	return votes.Inserted, nil
}

func (r *memRepo) DeleteVote(_ context.Context, slug, voter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.votes, [2]string{slug, voter})
	return nil
}

func (r *memRepo) Count(_ context.Context, slug string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[slug], nil
}

func (r *memRepo) Increment(_ context.Context, slug string, _ time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incrementErr != nil {
		return 0, r.incrementErr
	}
	r.counts[slug]++
	return r.counts[slug], nil
}

func (r *memRepo) Counts(_ context.Context, slugs []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countsCalls++
	out := map[string]int64{}
	for _, s := range slugs {
		if n, ok := r.counts[s]; ok {
			out[s] = n
		}
	}
	return out, nil
}

func newCache(t *testing.T) (*votes.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return votes.NewRedisCache(client, time.Minute), mr
}

func TestVote_SecondVoteFromSameFingerprint(t *testing.T) {
	t.Parallel()

	ledger := votes.NewLedger(newMemRepo(), nil, logger.NewNop(), nil)
	fp := votes.Fingerprint("203.0.113.7", "Mozilla/5.0")

	first, err := ledger.Vote(t.Context(), "tool-x", fp)
	require.NoError(t, err)
	assert.Equal(t, votes.Result{Upvotes: 1, AlreadyVoted: false}, first)

	second, err := ledger.Vote(t.Context(), "tool-x", fp)
	require.NoError(t, err)
	assert.Equal(t, votes.Result{Upvotes: 1, AlreadyVoted: true}, second)
}

func TestVote_ConcurrentSameFingerprintIncrementsOnce(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	ledger := votes.NewLedger(repo, nil, logger.NewNop(), nil)
	fp := votes.Fingerprint("198.51.100.1", "curl/8")

	const voters = 32
	var wg sync.WaitGroup
	results := make([]votes.Result, voters)
	for i := range voters {
		wg.Go(func() {
			res, err := ledger.Vote(context.Background(), "tool-y", fp)
			assert.NoError(t, err)
			results[i] = res
		})
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		if !r.AlreadyVoted {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(1), repo.counts["tool-y"])
}

func TestVote_DistinctVotersAllCount(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	ledger := votes.NewLedger(repo, nil, logger.NewNop(), nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			_, err := ledger.Vote(context.Background(), "tool-z", votes.Fingerprint("10.0.0.1", string(rune('a'+i))))
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int64(10), repo.counts["tool-z"])
}

func TestVote_EmptySlugRejected(t *testing.T) {
	t.Parallel()

	ledger := votes.NewLedger(newMemRepo(), nil, logger.NewNop(), nil)
	_, err := ledger.Vote(t.Context(), "  ", "fp")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestVote_CounterFailureRollsBackVote(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	repo.incrementErr = errors.New("deadlock detected")
	ledger := votes.NewLedger(repo, nil, logger.NewNop(), nil)

	_, err := ledger.Vote(t.Context(), "tool-x", "fp")
	require.Error(t, err)
	assert.Empty(t, repo.votes, "vote row is removed so the voter can retry")

	repo.incrementErr = nil
	res, err := ledger.Vote(t.Context(), "tool-x", "fp")
	require.NoError(t, err)
	assert.Equal(t, votes.Result{Upvotes: 1}, res)
}

func TestVote_WritesThroughCache(t *testing.T) {
	t.Parallel()

	cache, mr := newCache(t)
	ledger := votes.NewLedger(newMemRepo(), cache, logger.NewNop(), nil)

	_, err := ledger.Vote(t.Context(), "tool-x", "fp")
	require.NoError(t, err)

	got, err := mr.Get("tool_upvotes:tool-x")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.Positive(t, mr.TTL("tool_upvotes:tool-x"))
}

func TestCounts_ReadsCacheThenDatabaseAndBackfills(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	repo.counts["db-only"] = 7
	cache, mr := newCache(t)
	require.NoError(t, mr.Set("tool_upvotes:cached", "42"))

	ledger := votes.NewLedger(repo, cache, logger.NewNop(), nil)

	counts, err := ledger.Counts(t.Context(), []string{"cached", "db-only", "absent"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cached": 42, "db-only": 7, "absent": 0}, counts)
	assert.Equal(t, 1, repo.countsCalls)

	backfilled, err := mr.Get("tool_upvotes:db-only")
	require.NoError(t, err)
	assert.Equal(t, "7", backfilled)

	again, err := ledger.Counts(t.Context(), []string{"cached", "db-only", "absent"})
	require.NoError(t, err)
	assert.Equal(t, counts, again)
	assert.Equal(t, 1, repo.countsCalls, "second read is served from cache")
}

func TestCounts_CacheDownFallsBackToDatabase(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	repo.counts["a"] = 3
	cache, mr := newCache(t)
	mr.Close()

	ledger := votes.NewLedger(repo, cache, logger.NewNop(), nil)
	counts, err := ledger.Counts(t.Context(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["a"])
}

func TestCounts_Limits(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	ledger := votes.NewLedger(repo, nil, logger.NewNop(), nil)

	tooMany := make([]string, votes.MaxCountSlugs+1)
	for i := range tooMany {
		tooMany[i] = string(rune('a' + i%26))
	}
	_, err := ledger.Counts(t.Context(), tooMany)
	require.ErrorIs(t, err, votes.ErrTooManySlugs)
	assert.Zero(t, repo.countsCalls)

	empty, err := ledger.Counts(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseSlugs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, votes.ParseSlugs(" a, b,,a ,"))
	assert.Empty(t, votes.ParseSlugs(""))
}
