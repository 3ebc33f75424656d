package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/jwt"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
)

// ServerBuilder provides a fluent API for building HTTP servers.
type ServerBuilder struct {
	config         *Config
	logger         logger.Logger
	setupRoutes    func(*gin.Engine)
	healthChecks   map[string]HealthChecker
	middleware     []gin.HandlerFunc
	metricsHandler http.Handler
}

// NewServerBuilder creates a new server builder with the given configuration.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

// WithDebug enables or disables debug mode.
func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the service version.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

// WithCORSOrigins sets allowed CORS origins.
func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	b.config.CORS.AllowedOrigins = origins
	return b
}

// WithTimeouts sets all timeout values for the HTTP server.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithTrustedProxies sets the proxies allowed to supply X-Forwarded-For.
func (b *ServerBuilder) WithTrustedProxies(proxies []string) *ServerBuilder {
	b.config.TrustedProxies = proxies
	return b
}

// WithDatabaseHealthCheck adds a database health check.
func (b *ServerBuilder) WithDatabaseHealthCheck(pingFunc func() error) *ServerBuilder {
	b.healthChecks["database"] = DatabaseHealthChecker(pingFunc)
	return b
}

// WithRedisHealthCheck adds a Redis health check.
func (b *ServerBuilder) WithRedisHealthCheck(pingFunc func() error) *ServerBuilder {
	b.healthChecks["redis"] = RedisHealthChecker(pingFunc)
	return b
}

// WithMiddleware appends global middleware that runs after the standard chain.
func (b *ServerBuilder) WithMiddleware(mw ...gin.HandlerFunc) *ServerBuilder {
	b.middleware = append(b.middleware, mw...)
	return b
}

// WithMetricsHandler exposes handler on GET /metrics.
func (b *ServerBuilder) WithMetricsHandler(handler http.Handler) *ServerBuilder {
	b.metricsHandler = handler
	return b
}

// WithRoutes sets the route setup function.
func (b *ServerBuilder) WithRoutes(setupRoutes func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server with all configured options.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{Level: "info", Development: b.config.Debug})
	}

	wrappedSetup := func(router *gin.Engine) {
		if len(b.middleware) > 0 {
			router.Use(b.middleware...)
		}

		RegisterHealthRoutes(router, HealthOptions{
			ServiceName:    b.config.ServiceName,
			ServiceVersion: b.config.ServiceVersion,
			Checks:         b.healthChecks,
		})

		if b.metricsHandler != nil {
			router.GET("/metrics", gin.WrapH(b.metricsHandler))
		}

		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	}

	return NewServer(b.config, b.logger, wrappedSetup)
}

// ProtectedGroup creates a router group guarded by JWT authentication.
// An empty secret leaves the group open, which is only useful in tests.
func ProtectedGroup(router *gin.Engine, path, jwtSecret string) *gin.RouterGroup {
	group := router.Group(path)
	if jwtSecret != "" {
		group.Use(jwt.Middleware(jwtSecret))
	}
	return group
}

// PublicGroup creates a router group without authentication.
func PublicGroup(router *gin.Engine, path string) *gin.RouterGroup {
	return router.Group(path)
}

// SetupAPIRoutesWithPublic sets up /api/v1 as both a public and a protected group.
func SetupAPIRoutesWithPublic(router *gin.Engine, jwtSecret string) (publicGroup, protectedGroup *gin.RouterGroup) {
	publicGroup = PublicGroup(router, "/api/v1")
	protectedGroup = ProtectedGroup(router, "/api/v1", jwtSecret)
	return publicGroup, protectedGroup
}
