package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	infrajwt "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/jwt"
	infralogger "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
)

const operatorSubject = "admin"

// AuthHandler exchanges the operator password for a bearer token.
type AuthHandler struct {
	password string
	secret   string
	ttl      time.Duration
	logger   infralogger.Logger
	now      func() time.Time
}

// NewAuthHandler creates an AuthHandler issuing tokens valid for ttl.
func NewAuthHandler(password, secret string, ttl time.Duration, log infralogger.Logger) *AuthHandler {
	return &AuthHandler{password: password, secret: secret, ttl: ttl, logger: log, now: time.Now}
}

// WithClock replaces the clock used for token timestamps.
func (h *AuthHandler) WithClock(now func() time.Time) *AuthHandler {
	h.now = now
	return h
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login issues a token for the operator password.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if h.password == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) != 1 {
		h.logger.Warn("Rejected login attempt", infralogger.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	token, expiresAt, err := infrajwt.Issue(h.secret, operatorSubject, h.ttl, h.now())
	if err != nil {
		h.logger.Error("Failed to issue token", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}
