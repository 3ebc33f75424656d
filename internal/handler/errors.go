// Package handler holds the gin handlers for the vote, draft, publish and
// auth endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

// parseUUID parses a UUID path parameter, answering 400 when it is invalid.
func parseUUID(c *gin.Context, paramName, entityType string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + entityType + " ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error, entityType, operation string) {
	switch {
	case errors.Is(err, domain.ErrNoFieldsToUpdate):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "At least one field must be provided for update",
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": entityType + " not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": entityType + " with this slug already exists"})
	case errors.Is(err, domain.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to " + operation + " " + entityType,
		})
	}
}
