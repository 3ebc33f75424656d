package gin_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ginpkg "github.com/gin-gonic/gin"

	infragin "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/gin"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
)

func newTestRouter(t *testing.T) *ginpkg.Engine {
	t.Helper()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.RequestIDLoggerMiddleware(logger.NewNop()))
	router.GET("/test", func(c *ginpkg.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestRequestIDLoggerMiddleware_GeneratesID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	router.ServeHTTP(w, req)

	reqID := w.Header().Get(infragin.RequestIDHeader)
	const expectedLen = 32
	if len(reqID) != expectedLen {
		t.Errorf("generated request ID %q has length %d, want %d", reqID, len(reqID), expectedLen)
	}
}

func TestRequestIDLoggerMiddleware_PreservesExistingID(t *testing.T) {
	t.Parallel()

	const inboundID = "trace-from-upstream-abc123"

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.RequestIDLoggerMiddleware(logger.NewNop()))

	var gotGinCtxID string
	var gotCtxLogger bool
	router.GET("/test", func(c *ginpkg.Context) {
		gotGinCtxID = c.GetString(infragin.RequestIDKey)
		gotCtxLogger = logger.FromContext(c.Request.Context()) != nil
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(infragin.RequestIDHeader, inboundID)
	router.ServeHTTP(w, req)

	if got := w.Header().Get(infragin.RequestIDHeader); got != inboundID {
		t.Errorf("response X-Request-ID = %q, want %q", got, inboundID)
	}
	if gotGinCtxID != inboundID {
		t.Errorf("gin context request_id = %q, want %q", gotGinCtxID, inboundID)
	}
	if !gotCtxLogger {
		t.Error("request context has no logger")
	}
}

func TestRequestIDLoggerMiddleware_RejectsOversizedID(t *testing.T) {
	t.Parallel()

	oversizedID := strings.Repeat("x", 200)
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(infragin.RequestIDHeader, oversizedID)
	router.ServeHTTP(w, req)

	if got := w.Header().Get(infragin.RequestIDHeader); got == oversizedID || got == "" {
		t.Errorf("X-Request-ID = %q, want a freshly generated id", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	t.Parallel()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.CORSMiddleware(infragin.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://fyi.example"},
	}))
	router.OPTIONS("/api", func(c *ginpkg.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{name: "allowed origin", origin: "https://fyi.example", wantStatus: http.StatusNoContent, wantOrigin: "https://fyi.example"},
		{name: "unknown origin", origin: "https://evil.example", wantStatus: http.StatusOK, wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/api", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	t.Parallel()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.RecoveryMiddleware(logger.NewNop()))
	router.GET("/boom", func(*ginpkg.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestHealth_AggregatesChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dbErr      error
		redisErr   error
		wantCode   int
		wantStatus infragin.HealthStatus
	}{
		{name: "all healthy", wantCode: http.StatusOK, wantStatus: infragin.HealthStatusHealthy},
		{name: "redis down", redisErr: errors.New("down"), wantCode: http.StatusOK, wantStatus: infragin.HealthStatusDegraded},
		{name: "database down", dbErr: errors.New("down"), wantCode: http.StatusServiceUnavailable, wantStatus: infragin.HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ginpkg.SetMode(ginpkg.TestMode)
			router := ginpkg.New()
			infragin.RegisterHealthRoutes(router, infragin.HealthOptions{
				ServiceName: "tool-reviews",
				Checks: map[string]infragin.HealthChecker{
					"database": infragin.DatabaseHealthChecker(func() error { return tt.dbErr }),
					"redis":    infragin.RedisHealthChecker(func() error { return tt.redisErr }),
				},
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body infragin.HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestNewServer_ClientIPHonoursTrustedProxiesOnly(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		want    string
	}{
		{name: "no trusted proxies", trusted: nil, remote: "203.0.113.7:5000", want: "203.0.113.7"},
		{name: "untrusted peer", trusted: []string{"10.0.0.0/8"}, remote: "203.0.113.7:5000", want: "203.0.113.7"},
		{name: "trusted peer", trusted: []string{"10.0.0.0/8"}, remote: "10.1.2.3:5000", want: "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			cfg := infragin.NewConfig("test", 0)
			cfg.TrustedProxies = tt.trusted
			server := infragin.NewServer(cfg, logger.NewNop(), func(r *ginpkg.Engine) {
				r.GET("/ip", func(c *ginpkg.Context) {
					got = c.ClientIP()
					c.Status(http.StatusNoContent)
				})
			})

			req := httptest.NewRequest(http.MethodGet, "/ip", http.NoBody)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", "1.1.1.1")
			server.Handler().ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
