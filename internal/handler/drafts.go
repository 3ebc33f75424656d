package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/drafts"
)

const entityDraft = "draft"

// DraftStore is the draft repository used by DraftHandler.
type DraftStore interface {
	Create(ctx context.Context, req drafts.CreateRequest) (*domain.Draft, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
	List(ctx context.Context, f drafts.Filter) ([]domain.Draft, error)
	Update(ctx context.Context, id uuid.UUID, fields drafts.Fields) (*domain.Draft, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResearchQueue queues drafts for the research worker.
type ResearchQueue interface {
	Enqueue(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
}

// DraftHandler serves the operator draft endpoints.
type DraftHandler struct {
	store  DraftStore
	queue  ResearchQueue
	logger infralogger.Logger
}

// NewDraftHandler creates a DraftHandler.
func NewDraftHandler(store DraftStore, queue ResearchQueue, log infralogger.Logger) *DraftHandler {
	return &DraftHandler{store: store, queue: queue, logger: log}
}

// Create inserts a pending draft.
// POST /api/v1/drafts
func (h *DraftHandler) Create(c *gin.Context) {
	var req drafts.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	d, err := h.store.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, entityDraft, "create")
		return
	}

	h.logger.Info("Draft created",
		infralogger.String("draft_id", d.ID.String()),
		infralogger.String("url", d.URL),
	)
	c.JSON(http.StatusCreated, d)
}

// List returns drafts newest first.
// GET /api/v1/drafts?status=draft&limit=50&offset=0
func (h *DraftHandler) List(c *gin.Context) {
	filter := drafts.Filter{Status: domain.Status(c.Query("status"))}
	var ok bool
	if filter.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	list, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, entityDraft, "list")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drafts": list,
		"count":  len(list),
	})
}

// Get returns one draft.
// GET /api/v1/drafts/:id
func (h *DraftHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id", entityDraft)
	if !ok {
		return
	}

	d, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, entityDraft, "get")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Update applies a partial update.
// PATCH /api/v1/drafts/:id
func (h *DraftHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id", entityDraft)
	if !ok {
		return
	}

	var fields drafts.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	d, err := h.store.Update(c.Request.Context(), id, fields)
	if err != nil {
		respondError(c, err, entityDraft, "update")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Delete removes a draft.
// DELETE /api/v1/drafts/:id
func (h *DraftHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id", entityDraft)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, entityDraft, "delete")
		return
	}
	c.Status(http.StatusNoContent)
}

// Research queues a draft for the research worker.
// POST /api/v1/drafts/:id/research
func (h *DraftHandler) Research(c *gin.Context) {
	id, ok := parseUUID(c, "id", entityDraft)
	if !ok {
		return
	}

	d, err := h.queue.Enqueue(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, entityDraft, "queue")
		return
	}

	h.logger.Info("Draft queued for research", infralogger.String("draft_id", id.String()))
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Research queued",
		"draft":   d,
	})
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key + " parameter"})
		return 0, false
	}
	return n, true
}
