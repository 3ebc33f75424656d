package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/middleware"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/votes"
)

// VoteLedger is the vote service used by VoteHandler.
type VoteLedger interface {
	Vote(ctx context.Context, slug, fingerprint string) (votes.Result, error)
	CurrentCount(ctx context.Context, slug string) (int64, error)
	Counts(ctx context.Context, slugs []string) (map[string]int64, error)
}

// VoteHandler serves the public upvote endpoints.
type VoteHandler struct {
	ledger  VoteLedger
	logger  infralogger.Logger
	metrics *metrics.Metrics
}

// NewVoteHandler creates a VoteHandler. m may be nil.
func NewVoteHandler(ledger VoteLedger, log infralogger.Logger, m *metrics.Metrics) *VoteHandler {
	return &VoteHandler{ledger: ledger, logger: log, metrics: m}
}

type upvoteRequest struct {
	Slug string `json:"slug"`
}

// Upvote records one vote per voter fingerprint.
// POST /api/v1/tools/upvote
func (h *VoteHandler) Upvote(c *gin.Context) {
	var req upvoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Slug) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug is required"})
		return
	}
	ctx := c.Request.Context()

	if middleware.FlaggedBot(c) {
		h.metrics.ObserveVote(metrics.OutcomeBot)
		count, err := h.ledger.CurrentCount(ctx, req.Slug)
		if err != nil {
			h.logger.Warn("Vote count lookup failed for bot request", infralogger.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "upvotes": count, "alreadyVoted": true})
		return
	}

	ip := votes.ClientIP(c.ClientIP(), c.Request.Header)
	fingerprint := votes.Fingerprint(ip, c.Request.UserAgent())

	result, err := h.ledger.Vote(ctx, req.Slug, fingerprint)
	if err != nil {
		h.logger.Error("Failed to record vote",
			infralogger.String("slug", req.Slug),
			infralogger.Error(err),
		)
		respondError(c, err, "vote", "record")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"upvotes":      result.Upvotes,
		"alreadyVoted": result.AlreadyVoted,
	})
}

// Upvotes returns the counts for a comma-separated slug list.
// GET /api/v1/tools/upvotes?slugs=a,b
func (h *VoteHandler) Upvotes(c *gin.Context) {
	raw, ok := c.GetQuery("slugs")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slugs query parameter is required"})
		return
	}

	slugs := votes.ParseSlugs(raw)
	if len(slugs) == 0 {
		c.JSON(http.StatusOK, gin.H{"upvotes": gin.H{}})
		return
	}

	counts, err := h.ledger.Counts(c.Request.Context(), slugs)
	if err != nil {
		respondError(c, err, "vote counts", "get")
		return
	}
	c.JSON(http.StatusOK, gin.H{"upvotes": counts})
}
