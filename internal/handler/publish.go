package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/publisher"
)

// Publisher commits drafts to the site repository.
type Publisher interface {
	Publish(ctx context.Context, id uuid.UUID) (*publisher.Result, error)
	PublishBatch(ctx context.Context, ids []uuid.UUID) (*publisher.BatchResult, error)
}

// PublishHandler serves the publish endpoints.
type PublishHandler struct {
	publisher Publisher
	logger    infralogger.Logger
}

// NewPublishHandler creates a PublishHandler.
func NewPublishHandler(p Publisher, log infralogger.Logger) *PublishHandler {
	return &PublishHandler{publisher: p, logger: log}
}

// Publish commits one draft.
// POST /api/v1/drafts/:id/publish
func (h *PublishHandler) Publish(c *gin.Context) {
	id, ok := parseUUID(c, "id", entityDraft)
	if !ok {
		return
	}

	res, err := h.publisher.Publish(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Publish failed",
			infralogger.String("draft_id", id.String()),
			infralogger.Error(err),
		)
		respondError(c, err, entityDraft, "publish")
		return
	}

	body := gin.H{
		"success":   true,
		"message":   "Published to " + res.FilePath,
		"draft":     res.Draft,
		"filePath":  res.FilePath,
		"commitSha": res.CommitSHA,
	}
	if res.Degraded {
		body["degraded"] = true
		body["warning"] = res.Warning
		body["message"] = "Committed to " + res.FilePath + " but the draft status was not updated"
	}
	c.JSON(http.StatusOK, body)
}

type publishBatchRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// PublishBatch commits many drafts as one commit. The batch result is
// returned with 400 when nothing was publishable and 500 when the commit
// failed.
// POST /api/v1/drafts/publish-batch
func (h *PublishHandler) PublishBatch(c *gin.Context) {
	var req publishBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	res, err := h.publisher.PublishBatch(c.Request.Context(), req.IDs)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case res == nil && errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case res == nil:
		h.logger.Error("Batch publish failed", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to publish batch"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, res)
	default:
		c.JSON(http.StatusInternalServerError, res)
	}
}
