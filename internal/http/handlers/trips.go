package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/domain"
	"loadmatch/internal/services"
)

// POST /api/trips
func (a API) CreateTrip(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	var in services.CreateTripInput
	if !BindJSONOrError(c, &in) {
		return
	}
	t, err := a.Trips.Create(c.Request.Context(), sub, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GET /api/trips?start_location=&end_location=&min_capacity=&page=&page_size=
func (a API) SearchTrips(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	minCap, ok := queryInt(c, "min_capacity")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := queryInt(c, "page_size")
	if !ok {
		return
	}
	q := services.TripSearch{
		StartLocation: strings.TrimSpace(c.Query("start_location")),
		EndLocation:   strings.TrimSpace(c.Query("end_location")),
		MinCapacity:   minCap,
		Page:          domain.Pagination{Page: int(page), PageSize: int(size)},
	}
	trips, err := a.Trips.Search(c.Request.Context(), sub, q)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    trips,
		"page":     max(q.Page.Page, 1),
		"pageSize": q.Page.Limit(),
	})
}

// GET /api/trips/mine
func (a API) MyTrips(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	trips, err := a.Trips.Mine(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": trips})
}

// GET /api/trips/:id
func (a API) GetTrip(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := a.Trips.Get(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// PUT /api/trips/:id/depart
func (a API) DepartTrip(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := a.Trips.MarkDeparted(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /api/trips/:id/bookings?status=
func (a API) TripBookings(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := a.Bookings.ListForTrip(c.Request.Context(), sub, id, c.Query("status"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
