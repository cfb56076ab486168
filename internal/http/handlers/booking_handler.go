package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/policy"
	"loadmatch/internal/services"
)

// POST /api/bookings
func (a API) CreateBooking(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	var in services.CreateBookingInput
	if !BindJSONOrError(c, &in) {
		return
	}
	b, err := a.Bookings.Create(c.Request.Context(), sub, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /api/bookings
func (a API) ListBookings(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	items, err := a.Bookings.List(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /api/bookings/:id
func (a API) GetBooking(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := a.Bookings.Get(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type transitionFunc func(ctx context.Context, sub policy.Subject, id int64) (models.Booking, error)

func (a API) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := subject(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		b, err := fn(c.Request.Context(), sub, id)
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// PUT /api/bookings/:id/accept
func (a API) AcceptBooking(c *gin.Context) { a.transition(a.Bookings.Accept)(c) }

// PUT /api/bookings/:id/reject
func (a API) RejectBooking(c *gin.Context) { a.transition(a.Bookings.Reject)(c) }

// PUT /api/bookings/:id/cancel
func (a API) CancelBooking(c *gin.Context) { a.transition(a.Bookings.Cancel)(c) }

// PUT /api/bookings/:id/status?status_update=accepted|rejected
func (a API) DecideBooking(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status_update"))
	if status == "" {
		RespondDomainError(c, domain.ValidationError{Field: "status_update", Msg: "required"})
		return
	}
	a.transition(func(ctx context.Context, sub policy.Subject, id int64) (models.Booking, error) {
		return a.Bookings.Decide(ctx, sub, id, status)
	})(c)
}
