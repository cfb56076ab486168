package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/domain"
	"loadmatch/internal/http/middleware"
	"loadmatch/internal/notify"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/services"
)

// API holds the services the HTTP handlers call.
type API struct {
	Store    repositories.Store
	Auth     services.AuthService
	Users    services.UserService
	Vehicles services.VehicleService
	Trips    services.TripService
	Bookings services.BookingService
	Docs     services.DocsService
	Notify   notify.Dispatcher
	Hub      *notify.Hub

	// StreamKeepAlive is the SSE ping interval. Zero uses 25s.
	StreamKeepAlive time.Duration
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", err.Error())
		return false
	}
	return true
}

// subject returns the authenticated caller. Routes without Auth never call it.
func subject(c *gin.Context) (policy.Subject, bool) {
	sub, ok := middleware.GetSubject(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
	}
	return sub, ok
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondDomainError(c, domain.ValidationError{Field: name, Msg: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		RespondDomainError(c, domain.ValidationError{Field: name, Msg: "must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
