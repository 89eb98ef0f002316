package handler

import (
	"errors"
	"net/http"

	"watchparty/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// MessageResponse is returned by operations that have nothing else to report.
type MessageResponse struct {
	Message string `json:"message" example:"Left the party successfully"`
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var perr *apperr.PersistenceError
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		log.Error().Err(err).Str("module", "handler").Str("path", c.FullPath()).Msg("storage failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": perr.Error()})
	default:
		log.Error().Err(err).Str("module", "handler").Str("path", c.FullPath()).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
