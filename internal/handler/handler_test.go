package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrajwt "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/jwt"
	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/drafts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/handler"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/middleware"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/publisher"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/votes"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15"

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// --- votes ---

type fakeLedger struct {
	votes        map[string]map[string]bool
	counts       map[string]int64
	fingerprints []string
	countsErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{votes: map[string]map[string]bool{}, counts: map[string]int64{}}
}

func (l *fakeLedger) Vote(_ context.Context, slug, fingerprint string) (votes.Result, error) {
	l.fingerprints = append(l.fingerprints, fingerprint)
	if l.votes[slug] == nil {
		l.votes[slug] = map[string]bool{}
	}
	if l.votes[slug][fingerprint] {
		return votes.Result{Upvotes: l.counts[slug], AlreadyVoted: true}, nil
	}
	l.votes[slug][fingerprint] = true
	l.counts[slug]++
	return votes.Result{Upvotes: l.counts[slug]}, nil
}

func (l *fakeLedger) CurrentCount(_ context.Context, slug string) (int64, error) {
	return l.counts[slug], nil
}

func (l *fakeLedger) Counts(_ context.Context, slugs []string) (map[string]int64, error) {
	if l.countsErr != nil {
		return nil, l.countsErr
	}
	out := map[string]int64{}
	for _, s := range slugs {
		out[s] = l.counts[s]
	}
	return out, nil
}

func voteRouter(l *fakeLedger) *gin.Engine {
	r := gin.New()
	h := handler.NewVoteHandler(l, infralogger.NewNop(), nil)
	tools := r.Group("/api/v1/tools", middleware.BotFilter())
	tools.POST("/upvote", h.Upvote)
	tools.GET("/upvotes", h.Upvotes)
	return r
}

func TestUpvote_SameVoterCountsOnce(t *testing.T) {
	l := newFakeLedger()
	r := voteRouter(l)
	headers := map[string]string{"User-Agent": browserUA}

	first := decode(t, do(r, http.MethodPost, "/api/v1/tools/upvote", `{"slug":"tool-x"}`, headers))
	second := decode(t, do(r, http.MethodPost, "/api/v1/tools/upvote", `{"slug":"tool-x"}`, headers))

	assert.Equal(t, map[string]any{"success": true, "upvotes": float64(1), "alreadyVoted": false}, first)
	assert.Equal(t, map[string]any{"success": true, "upvotes": float64(1), "alreadyVoted": true}, second)
	require.Len(t, l.fingerprints, 2)
	assert.Equal(t, l.fingerprints[0], l.fingerprints[1])
	assert.Len(t, l.fingerprints[0], 64)
}

func TestUpvote_BotGetsCountWithoutWrite(t *testing.T) {
	l := newFakeLedger()
	l.counts["tool-x"] = 7
	r := voteRouter(l)

	w := do(r, http.MethodPost, "/api/v1/tools/upvote", `{"slug":"tool-x"}`, map[string]string{"User-Agent": "Googlebot/2.1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true, "upvotes": float64(7), "alreadyVoted": true}, decode(t, w))
	assert.Empty(t, l.fingerprints)
}

func TestUpvote_EmptyUserAgentVotesAsUnknown(t *testing.T) {
	l := newFakeLedger()
	r := voteRouter(l)

	w := do(r, http.MethodPost, "/api/v1/tools/upvote", `{"slug":"tool-x"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true, "upvotes": float64(1), "alreadyVoted": false}, decode(t, w))
	require.Len(t, l.fingerprints, 1)
	assert.Equal(t, votes.Fingerprint("192.0.2.1", "unknown"), l.fingerprints[0])
}

func TestUpvote_MissingSlug(t *testing.T) {
	r := voteRouter(newFakeLedger())
	for _, body := range []string{`{}`, `{"slug":"  "}`, `not json`} {
		w := do(r, http.MethodPost, "/api/v1/tools/upvote", body, map[string]string{"User-Agent": browserUA})
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestUpvotes(t *testing.T) {
	l := newFakeLedger()
	l.counts["a"] = 3
	r := voteRouter(l)

	tests := []struct {
		name   string
		target string
		status int
		want   map[string]any
	}{
		{"missing slugs", "/api/v1/tools/upvotes", http.StatusBadRequest, nil},
		{"empty list", "/api/v1/tools/upvotes?slugs=", http.StatusOK, map[string]any{"upvotes": map[string]any{}}},
		{"counts with zero fill", "/api/v1/tools/upvotes?slugs=a,b", http.StatusOK,
			map[string]any{"upvotes": map[string]any{"a": float64(3), "b": float64(0)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, "", map[string]string{"User-Agent": browserUA})
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.want != nil {
				assert.Equal(t, tt.want, decode(t, w))
			}
		})
	}
}

func TestUpvotes_TooManySlugs(t *testing.T) {
	l := newFakeLedger()
	l.countsErr = votes.ErrTooManySlugs
	w := do(voteRouter(l), http.MethodGet, "/api/v1/tools/upvotes?slugs=a", "", map[string]string{"User-Agent": browserUA})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- drafts ---

type fakeDrafts struct {
	drafts   map[uuid.UUID]*domain.Draft
	filter   drafts.Filter
	createFn func(drafts.CreateRequest) (*domain.Draft, error)
	updateFn func(uuid.UUID, drafts.Fields) (*domain.Draft, error)
}

func (f *fakeDrafts) Create(_ context.Context, req drafts.CreateRequest) (*domain.Draft, error) {
	return f.createFn(req)
}

func (f *fakeDrafts) Get(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	if d, ok := f.drafts[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDrafts) List(_ context.Context, filter drafts.Filter) ([]domain.Draft, error) {
	f.filter = filter
	out := []domain.Draft{}
	for _, d := range f.drafts {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDrafts) Update(_ context.Context, id uuid.UUID, fields drafts.Fields) (*domain.Draft, error) {
	return f.updateFn(id, fields)
}

func (f *fakeDrafts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.drafts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.drafts, id)
	return nil
}

type fakeQueue struct{ queued []uuid.UUID }

func (q *fakeQueue) Enqueue(_ context.Context, id uuid.UUID) (*domain.Draft, error) {
	q.queued = append(q.queued, id)
	return &domain.Draft{ID: id, Status: domain.StatusResearching}, nil
}

func draftRouter(store *fakeDrafts, queue *fakeQueue) *gin.Engine {
	r := gin.New()
	h := handler.NewDraftHandler(store, queue, infralogger.NewNop())
	g := r.Group("/api/v1/drafts")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/research", h.Research)
	return r
}

func TestDraftHandler_CreateMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"created", nil, http.StatusCreated},
		{"validation", domain.NewValidationError("url", "must be a valid URL"), http.StatusBadRequest},
		{"duplicate slug", domain.ErrAlreadyExists, http.StatusConflict},
		{"database down", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeDrafts{createFn: func(req drafts.CreateRequest) (*domain.Draft, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &domain.Draft{ID: uuid.New(), URL: req.URL, Status: domain.StatusPending}, nil
			}}
			w := do(draftRouter(store, &fakeQueue{}), http.MethodPost, "/api/v1/drafts", `{"url":"https://acme.com"}`, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestDraftHandler_ListPassesFilter(t *testing.T) {
	store := &fakeDrafts{drafts: map[uuid.UUID]*domain.Draft{uuid.New(): {Status: domain.StatusDraft}}}
	r := draftRouter(store, &fakeQueue{})

	w := do(r, http.MethodGet, "/api/v1/drafts?status=draft&limit=5&offset=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, drafts.Filter{Status: domain.StatusDraft, Limit: 5, Offset: 10}, store.filter)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(r, http.MethodGet, "/api/v1/drafts?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandler_GetUpdateDelete(t *testing.T) {
	id := uuid.New()
	store := &fakeDrafts{
		drafts: map[uuid.UUID]*domain.Draft{id: {ID: id, Status: domain.StatusDraft}},
		updateFn: func(_ uuid.UUID, fields drafts.Fields) (*domain.Draft, error) {
			if len(fields) == 0 {
				return nil, domain.ErrNoFieldsToUpdate
			}
			return &domain.Draft{ID: id, Status: domain.Status(fields["status"].(string))}, nil
		},
	}
	r := draftRouter(store, &fakeQueue{})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/drafts/"+id.String(), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/drafts/"+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/drafts/not-a-uuid", "", nil).Code)

	w := do(r, http.MethodPatch, "/api/v1/drafts/"+id.String(), `{"status":"approved"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w)["status"])

	w = do(r, http.MethodPatch, "/api/v1/drafts/"+id.String(), `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/drafts/"+id.String(), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/v1/drafts/"+id.String(), "", nil).Code)
}

func TestDraftHandler_ResearchQueues(t *testing.T) {
	id := uuid.New()
	queue := &fakeQueue{}
	w := do(draftRouter(&fakeDrafts{}, queue), http.MethodPost, "/api/v1/drafts/"+id.String()+"/research", "", nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []uuid.UUID{id}, queue.queued)
	body := decode(t, w)
	assert.Equal(t, "researching", body["draft"].(map[string]any)["status"])
}

// --- publish ---

type fakePublisher struct {
	result      *publisher.Result
	batch       *publisher.BatchResult
	err         error
	receivedIDs []uuid.UUID
}

func (p *fakePublisher) Publish(context.Context, uuid.UUID) (*publisher.Result, error) {
	return p.result, p.err
}

func (p *fakePublisher) PublishBatch(_ context.Context, ids []uuid.UUID) (*publisher.BatchResult, error) {
	p.receivedIDs = ids
	return p.batch, p.err
}

func publishRouter(p *fakePublisher) *gin.Engine {
	r := gin.New()
	h := handler.NewPublishHandler(p, infralogger.NewNop())
	r.POST("/api/v1/drafts/:id/publish", h.Publish)
	r.POST("/api/v1/drafts/publish-batch", h.PublishBatch)
	return r
}

func TestPublishHandler_Publish(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		pub    *fakePublisher
		status int
	}{
		{
			name: "published",
			pub: &fakePublisher{result: &publisher.Result{
				Draft:     &domain.Draft{ID: id, Status: domain.StatusPublished},
				FilePath:  "src/content/tools/acme-crm.md",
				CommitSHA: "c1",
			}},
			status: http.StatusOK,
		},
		{"not publishable", &fakePublisher{err: domain.NewValidationError("status", "draft must be approved")}, http.StatusBadRequest},
		{"missing draft", &fakePublisher{err: domain.ErrNotFound}, http.StatusNotFound},
		{"github down", &fakePublisher{err: domain.Upstream("github", errors.New("http 503"))}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(publishRouter(tt.pub), http.MethodPost, "/api/v1/drafts/"+id.String()+"/publish", "", nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				body := decode(t, w)
				assert.Equal(t, true, body["success"])
				assert.Equal(t, "src/content/tools/acme-crm.md", body["filePath"])
				assert.Equal(t, "c1", body["commitSha"])
			}
		})
	}
}

func TestPublishHandler_PublishDegraded(t *testing.T) {
	id := uuid.New()
	pub := &fakePublisher{result: &publisher.Result{
		Draft:     &domain.Draft{ID: id, Status: domain.StatusApproved},
		FilePath:  "src/content/tools/acme-crm.md",
		CommitSHA: "c1",
		Degraded:  true,
		Warning:   "committed c1 but the draft status update failed: connection refused",
	}}

	w := do(publishRouter(pub), http.MethodPost, "/api/v1/drafts/"+id.String()+"/publish", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["degraded"])
	assert.Equal(t, "c1", body["commitSha"])
	assert.Contains(t, body["warning"], "connection refused")
}

func TestPublishHandler_PublishBatchStatuses(t *testing.T) {
	failed := &publisher.BatchResult{TotalRequested: 1, TotalFailed: 1, Error: "No valid tools to publish"}
	tests := []struct {
		name   string
		body   string
		pub    *fakePublisher
		status int
	}{
		{"empty", `{"ids":[]}`, &fakePublisher{err: publisher.ErrEmptyBatch}, http.StatusBadRequest},
		{"too many", `{"ids":[]}`, &fakePublisher{err: publisher.ErrBatchTooLarge}, http.StatusBadRequest},
		{"bad id", `{"ids":["nope"]}`, &fakePublisher{}, http.StatusBadRequest},
		{"nothing valid", `{"ids":["` + uuid.NewString() + `"]}`, &fakePublisher{batch: failed, err: publisher.ErrNoValidDrafts}, http.StatusBadRequest},
		{"commit failed", `{"ids":["` + uuid.NewString() + `"]}`, &fakePublisher{batch: failed, err: domain.Upstream("github", errors.New("ref moved"))}, http.StatusInternalServerError},
		{"load failed", `{"ids":["` + uuid.NewString() + `"]}`, &fakePublisher{err: errors.New("db down")}, http.StatusInternalServerError},
		{"committed", `{"ids":["` + uuid.NewString() + `"]}`, &fakePublisher{batch: &publisher.BatchResult{Success: true, TotalSucceeded: 1}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(publishRouter(tt.pub), http.MethodPost, "/api/v1/drafts/publish-batch", tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

// --- auth ---

func TestAuthHandler_Login(t *testing.T) {
	const secret = "test-secret"
	now := time.Now().UTC().Truncate(time.Second)
	h := handler.NewAuthHandler("hunter2", secret, 24*time.Hour, infralogger.NewNop()).
		WithClock(func() time.Time { return now })
	r := gin.New()
	r.POST("/api/v1/auth/login", h.Login)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/auth/login", `{}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/auth/login", `{"password":"wrong"}`, nil).Code)

	w := do(r, http.MethodPost, "/api/v1/auth/login", `{"password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, now.Add(24*time.Hour).Format(time.RFC3339), body["expiresAt"])

	token, ok := body["token"].(string)
	require.True(t, ok)
	_, err := infrajwt.Parse(secret, token)
	require.NoError(t, err)
}
