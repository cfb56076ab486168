package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/domain"
	"loadmatch/internal/http/middleware"
	"loadmatch/internal/utils"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsInsufficientCapacity(err):
		respondError(c, http.StatusConflict, "insufficient_capacity", err.Error(), capacityDetails(err))
	case domain.IsInvalidState(err):
		respondError(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		_ = c.Error(err)
		utils.LogError(c.Request.Context(), "http", "unhandled", err, "path", c.Request.URL.Path)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func capacityDetails(err error) any {
	var ic domain.InsufficientCapacityError
	if !errors.As(err, &ic) {
		return nil
	}
	return gin.H{"trip_id": ic.TripID, "requested": ic.Requested, "available": ic.Available}
}
