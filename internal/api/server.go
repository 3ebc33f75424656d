package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/gin"
	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/config"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Pinger reports backend reachability for /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the optional backends checked by /health. A nil Redis ping
// means the cache is disabled.
type Deps struct {
	DB        Pinger
	RedisPing func(ctx context.Context) error
	Metrics   *metrics.Metrics
	Done      <-chan struct{}
}

// NewServer creates the HTTP server.
func NewServer(cfg *config.Config, h Handlers, deps Deps, log infralogger.Logger) *infragin.Server {
	rl := RateLimit{
		MaxRequests: cfg.RateLimit.MaxVotesPerMinute,
		Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		Done:        deps.Done,
	}

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTrustedProxies(cfg.Service.TrustedProxies).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithDatabaseHealthCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return deps.DB.PingContext(ctx)
		})

	if deps.RedisPing != nil {
		builder = builder.WithRedisHealthCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return deps.RedisPing(ctx)
		})
	}
	if deps.Metrics != nil {
		builder = builder.
			WithMiddleware(deps.Metrics.GinMiddleware()).
			WithMetricsHandler(deps.Metrics.Handler())
	}

	return builder.
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, h, cfg.Auth.JWTSecret, rl)
		}).
		Build()
}
