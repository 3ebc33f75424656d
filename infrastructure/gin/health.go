package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the status of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of an individual health check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker performs a health check.
type HealthChecker func() CheckResult

// HealthOptions configures the health endpoint behavior.
type HealthOptions struct {
	ServiceName    string
	ServiceVersion string
	// StartTime defaults to the registration time.
	StartTime time.Time
	Checks    map[string]HealthChecker
}

// RegisterHealthRoutes adds GET and HEAD /health.
func RegisterHealthRoutes(router *gin.Engine, opts HealthOptions) {
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}

	router.GET("/health", healthHandler(opts))
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
}

func healthHandler(opts HealthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: opts.ServiceName,
			Version: opts.ServiceVersion,
			Uptime:  time.Since(opts.StartTime).Round(time.Second).String(),
		}

		if len(opts.Checks) > 0 {
			response.Checks = make(map[string]CheckResult, len(opts.Checks))
			for name, checker := range opts.Checks {
				result := checker()
				response.Checks[name] = result

				switch {
				case result.Status == HealthStatusUnhealthy:
					response.Status = HealthStatusUnhealthy
				case result.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy:
					response.Status = HealthStatusDegraded
				}
			}
		}

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}

// DatabaseHealthChecker reports unhealthy when pingFunc fails; the service
// cannot work without Postgres.
func DatabaseHealthChecker(pingFunc func() error) HealthChecker {
	return pingChecker(pingFunc, HealthStatusUnhealthy, "Database")
}

// RedisHealthChecker reports degraded when pingFunc fails; vote counts fall
// back to Postgres.
func RedisHealthChecker(pingFunc func() error) HealthChecker {
	return pingChecker(pingFunc, HealthStatusDegraded, "Redis")
}

func pingChecker(pingFunc func() error, failStatus HealthStatus, label string) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start).String()

		if err != nil {
			return CheckResult{Status: failStatus, Message: label + " connection failed", Latency: latency}
		}
		return CheckResult{Status: HealthStatusHealthy, Message: label + " connection OK", Latency: latency}
	}
}
