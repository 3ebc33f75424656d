package research_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/research"
)

// stubRunner flips drafts out of researching the way Run does.
type stubRunner struct {
	mu     sync.Mutex
	store  *memStore
	failOn map[uuid.UUID]bool
	stuck  map[uuid.UUID]bool
	ran    []uuid.UUID
}

func (r *stubRunner) Run(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	r.mu.Lock()
	r.ran = append(r.ran, id)
	r.mu.Unlock()

	if r.stuck[id] {
		return nil, errors.New("store unavailable")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d := r.store.drafts[id]
	if r.failOn[id] {
		d.Status = domain.StatusPending
		return nil, errors.New("model failed")
	}
	d.Status = domain.StatusDraft
	cp := *d
	return &cp, nil
}

func (r *stubRunner) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func queued(n int) []*domain.Draft {
	out := make([]*domain.Draft, n)
	for i := range out {
		out[i] = &domain.Draft{ID: uuid.New(), URL: "https://acme.com", Status: domain.StatusResearching}
	}
	return out
}

func TestWorker_ProcessAllDrainsQueue(t *testing.T) {
	drafts := queued(5)
	store := newMemStore(drafts...)
	runner := &stubRunner{store: store, failOn: map[uuid.UUID]bool{drafts[1].ID: true}}

	w := research.NewWorker(store, runner, research.WorkerConfig{BatchSize: 2}, logger.NewNop())
	res, err := w.ProcessAll(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 5, runner.runs())
	assert.Equal(t, domain.StatusPending, store.draft(drafts[1].ID).Status)
}

func TestWorker_ProcessAllStopsOnStuckDraft(t *testing.T) {
	drafts := queued(1)
	store := newMemStore(drafts...)
	runner := &stubRunner{store: store, stuck: map[uuid.UUID]bool{drafts[0].ID: true}}

	w := research.NewWorker(store, runner, research.WorkerConfig{}, logger.NewNop())
	res, err := w.ProcessAll(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, runner.runs())
}

func TestWorker_StartProcessesImmediately(t *testing.T) {
	drafts := queued(3)
	store := newMemStore(drafts...)
	runner := &stubRunner{store: store}

	w := research.NewWorker(store, runner, research.WorkerConfig{PollInterval: time.Hour}, logger.NewNop())
	w.Start(t.Context())
	require.True(t, w.IsRunning())

	assert.Eventually(t, func() bool { return runner.runs() == 3 }, time.Second, 5*time.Millisecond)

	w.Stop()
	assert.False(t, w.IsRunning())
	for _, d := range drafts {
		assert.Equal(t, domain.StatusDraft, store.draft(d.ID).Status)
	}
}
