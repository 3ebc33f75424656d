// Package api assembles the HTTP server and its routes.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/gin"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/handler"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/middleware"
)

// Handlers groups the route handlers.
type Handlers struct {
	Votes   *handler.VoteHandler
	Drafts  *handler.DraftHandler
	Publish *handler.PublishHandler
	Auth    *handler.AuthHandler
}

// RateLimit configures the public vote limiter.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
	// Done stops the limiter's cleanup goroutine.
	Done <-chan struct{}
}

// SetupRoutes configures all API routes. Health and metrics routes are
// registered by the infrastructure gin builder.
func SetupRoutes(router *gin.Engine, h Handlers, jwtSecret string, rl RateLimit) {
	public, protected := infragin.SetupAPIRoutesWithPublic(router, jwtSecret)

	public.POST("/auth/login", h.Auth.Login)

	// Public vote routes with bot filter and rate limiting
	tools := public.Group("/tools")
	tools.Use(middleware.BotFilter())
	tools.Use(middleware.RateLimiter(rl.MaxRequests, rl.Window, rl.Done))
	tools.POST("/upvote", h.Votes.Upvote)
	tools.GET("/upvotes", h.Votes.Upvotes)

	drafts := protected.Group("/drafts")
	drafts.POST("", h.Drafts.Create)
	drafts.GET("", h.Drafts.List)
	drafts.POST("/publish-batch", h.Publish.PublishBatch)
	drafts.GET("/:id", h.Drafts.Get)
	drafts.PATCH("/:id", h.Drafts.Update)
	drafts.DELETE("/:id", h.Drafts.Delete)
	drafts.POST("/:id/research", h.Drafts.Research)
	drafts.POST("/:id/publish", h.Publish.Publish)
}
